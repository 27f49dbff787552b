package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tonimelisma/schema-api/internal/sync"
)

// errBadRequest marks malformed query parameters on read routes.
var errBadRequest = errors.New("api: bad request")

// errorBody is the JSON body of every non-validation error response.
type errorBody struct {
	Error string `json:"error"`
	ID    string `json:"id,omitempty"`
	Type  string `json:"type,omitempty"`
}

// statusOf maps an error to its HTTP status and a client-safe message.
func statusOf(err error) (int, string) {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), "api: ")
	case errors.Is(err, sync.ErrInvalidBatch):
		return http.StatusBadRequest, message(sync.ErrInvalidBatch)
	case errors.Is(err, sync.ErrUnknownEntityType):
		return http.StatusNotFound, message(sync.ErrUnknownEntityType)
	case errors.Is(err, sync.ErrEntityNotFound):
		return http.StatusNotFound, message(sync.ErrEntityNotFound)
	case errors.Is(err, sync.ErrForbidden):
		return http.StatusForbidden, message(sync.ErrForbidden)
	case errors.Is(err, sync.ErrValidationFailed):
		return http.StatusUnprocessableEntity, message(sync.ErrValidationFailed)
	}

	return http.StatusInternalServerError, message(sync.ErrStorageFailure)
}

func message(sentinel error) string {
	return strings.TrimPrefix(sentinel.Error(), "sync: ")
}

// writeError renders err. Validation failures become the array of failing
// operations; everything else becomes an errorBody. Server errors are
// logged with their cause, which is never sent to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *sync.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, verr.Entries)
		return
	}

	status, msg := statusOf(err)
	body := errorBody{Error: msg}

	var berr *sync.BatchError
	if errors.As(err, &berr) {
		body.ID = berr.ID
		body.Type = berr.Type
	}

	if status == http.StatusBadRequest && errors.Is(err, sync.ErrInvalidBatch) && berr != nil && berr.Cause != nil {
		body.Error = msg + ": " + berr.Cause.Error()
	}

	if status >= http.StatusInternalServerError {
		s.requestLogger(r).Error("request failed",
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, body)
}
