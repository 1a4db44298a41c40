package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	platformerrors "github.com/beaconreign/engine/internal/platform/errors"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

type errorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error chain onto the HTTP surface. Domain errors carry
// their own status; storage misses become 404; anything else is a 500 with
// the detail kept out of the response body.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]errorBody{"error": {
			Code:    string(platformerrors.CodeNotFound),
			Message: "not found",
		}})
		return
	}

	var domainErr *platformerrors.Error
	if errors.As(err, &domainErr) {
		writeJSON(w, domainErr.Code.HTTPStatus(), map[string]errorBody{"error": {
			Code:      string(domainErr.Code),
			Message:   domainErr.Message,
			Metadata:  domainErr.Metadata,
			Retryable: domainErr.Code.Retryable(),
		}})
		return
	}

	writeJSON(w, http.StatusInternalServerError, map[string]errorBody{"error": {
		Code:    string(platformerrors.CodeUnknown),
		Message: "internal error",
	}})
}

func writeForbidden(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusForbidden, map[string]errorBody{"error": {
		Code:    "FORBIDDEN",
		Message: msg,
	}})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
		Code:    "BAD_REQUEST",
		Message: msg,
	}})
}
