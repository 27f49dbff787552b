package api

import (
	"log/slog"
	"net/http"

	"github.com/tonimelisma/schema-api/internal/stream"
	"github.com/tonimelisma/schema-api/internal/sync"
)

// handleSync applies a mutation batch and streams every resulting
// operation, explicit ones first, then side effects.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	level, err := s.gzipParam(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	events, err := sync.DecodeBatch(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ops, err := s.engine.Sync(r.Context(), events)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.requestLogger(r).Debug("sync batch streamed",
		slog.Int("events", len(events)),
		slog.Int("operations", len(ops)),
	)

	sw, err := stream.NewResponse(w, http.StatusOK, stream.Options{GzipLevel: level})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	for _, op := range ops {
		if err := sw.Write(op.Payload(s.renderer)); err != nil {
			s.abortStream(r, err)
			return
		}
	}

	if err := sw.Close(); err != nil {
		s.abortStream(r, err)
	}
}
