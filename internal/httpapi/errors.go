package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"diffusiond/internal/engine"
	"diffusiond/internal/filters"
	"diffusiond/internal/manager"
	"diffusiond/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusForError maps well-known service errors to HTTP status codes.
// Interrupted runs are handled by the generation handler before this point.
func statusForError(err error) int {
	switch {
	case manager.IsConfigError(err), filters.IsNotFound(err):
		return http.StatusNotFound
	case manager.IsDependencyUnavailable(err), errors.Is(err, engine.ErrUnavailable):
		return http.StatusServiceUnavailable
	case manager.IsLoadError(err), manager.IsGenerationError(err):
		return http.StatusInternalServerError
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
