// internal/server/respond.go
//
// JSON response helpers shared by every handler.
package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("response encode failed", "err", err)
	}
}

// respondError emits the uniform failure envelope.  details may be nil.
func respondError(w http.ResponseWriter, status int, msg string, details any) {
	body := map[string]any{"success": false, "error": msg}
	if details != nil {
		body["details"] = details
	}
	respondJSON(w, status, body)
}
