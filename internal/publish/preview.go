// internal/publish/preview.go
//
// Preview-URL derivation.
//
// Context
// -------
// After a successful import the authority shows the editor a "view it live"
// link.  Three cases, in order:
//
//   1. A public base URL is configured → absolute URL against it.
//   2. The caller reached us through a public hostname → absolute URL
//      rebuilt from the request's Host and forwarded-proto headers.
//   3. The caller is on an internal network (Host carries the internal
//      marker suffix) → a path-only URL, because the internal hostname
//      would be unreachable from the editor's browser.
package publish

import (
	"net/http"
	"strings"
)

// internalMarker tags hostnames that only resolve inside the deployment's
// private network (e.g., "edge.fly-app.internal").
const internalMarker = ".internal"

// PreviewURL derives the post-publish link for slug.  publicBase may be
// empty; r supplies Host and X-Forwarded-Proto when it is.
func PreviewURL(publicBase string, r *http.Request, slug string) string {
	path := "/" + strings.TrimPrefix(slug, "/")

	if publicBase != "" {
		return strings.TrimRight(publicBase, "/") + path
	}

	host := stripPort(r.Host)
	if host == "" || strings.HasSuffix(host, internalMarker) {
		return path
	}

	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		if r.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	return proto + "://" + r.Host + path
}

// stripPort removes any ":port" suffix from the Host header.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
