// internal/publish/importer.go
//
// Publish importer.
//
// Context
// -------
// The authority pushes one validated page bundle per publish.  The importer
// is the only write path into the page table (the pull-publish fallback
// reuses it), and it owns the system's single concurrency control: a
// last-writer-wins-with-guard version check.  Publishing id X with a
// version not greater than the stored one fails with both numbers unless
// the caller sets force — true optimistic locking is unnecessary because
// publishes originate from one authoring backend and arrive sequentially.
//
// Validation failures come back as per-field `{path, message}` details, not
// a flat error, so the authoring UI can mark the offending fields.
//
// Notes
// -----
//   • Field paths use the wire (JSON) names, matching what the authority
//     sent, not Go struct names.
//   • Oxford commas, two spaces after periods.
package publish

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pagelift/edge/internal/metrics"
	"github.com/pagelift/edge/internal/store"
)

//
// Error types
//

// FieldError is one validation failure, addressed by wire-level path.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError carries every field failure from one bundle.
type ValidationError struct {
	Details []FieldError `json:"details"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid page bundle (%d field error(s))", len(e.Details))
}

// ConflictError reports a rejected publish with both version numbers so the
// caller can re-publish with force.
type ConflictError struct {
	ExistingVersion int64 `json:"existingVersion"`
	NewVersion      int64 `json:"newVersion"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: existing %d, new %d",
		e.ExistingVersion, e.NewVersion)
}

//
// Importer
//

// Result is what a successful import returns to the authority.
type Result struct {
	Slug       string `json:"slug"`
	Version    int64  `json:"version"`
	PreviewURL string `json:"previewUrl"`
}

// Importer validates and stores publish bundles.
type Importer struct {
	store    store.Store
	validate *validator.Validate
}

// New constructs an Importer over the given store.
func New(st store.Store) *Importer {
	v := validator.New()
	// Report wire names ("layoutData"), not Go names ("LayoutData").
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Importer{store: st, validate: v}
}

// Import validates the bundle, applies the version guard, and upserts.
// Errors are *ValidationError, *ConflictError, or a plain store error.
func (i *Importer) Import(ctx context.Context, page *store.PublishedPage, force bool) (*Result, error) {
	if err := i.validate.Struct(page); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, &ValidationError{Details: fieldErrors(verrs)}
		}
		return nil, err
	}

	if !force {
		existing, err := i.store.GetPageByID(ctx, page.ID)
		if err != nil {
			return nil, fmt.Errorf("version lookup: %w", err)
		}
		if existing != nil && existing.Version >= page.Version {
			metrics.ImportConflictTotal.Inc()
			return nil, &ConflictError{
				ExistingVersion: existing.Version,
				NewVersion:      page.Version,
			}
		}
	}

	version, err := i.store.UpsertPage(ctx, page)
	if err != nil {
		return nil, err
	}

	metrics.ImportTotal.Inc()
	zap.S().Infow("page imported",
		"slug", page.Slug, "version", version, "homepage", page.IsHomepage, "force", force)

	return &Result{Slug: page.Slug, Version: version}, nil
}

// Delete unpublishes a slug.  Idempotent: deleting an absent slug succeeds.
func (i *Importer) Delete(ctx context.Context, slug string) error {
	removed, err := i.store.DeletePage(ctx, slug)
	if err != nil {
		return err
	}
	if removed {
		zap.S().Infow("page unpublished", "slug", slug)
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// fieldErrors flattens validator output into wire-level details.  Namespace
// arrives as "PublishedPage.datasources[0].type"; the root struct name is
// dropped.
func fieldErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i != -1 {
			path = path[i+1:]
		}
		out = append(out, FieldError{Path: path, Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
