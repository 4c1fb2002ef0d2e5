package api

import (
	"net/http"

	"github.com/nerrad567/sensorhub/internal/apperr"
	"github.com/nerrad567/sensorhub/internal/audit"
	"github.com/nerrad567/sensorhub/internal/auth"
)

// handleListAudit returns the caller's own audit entries, most recent
// first. Optional filters: action, channel_id, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "audit log is not enabled")
		return
	}
	principal, _ := auth.PrincipalFrom(r.Context()) //nolint:errcheck // set by authMiddleware

	q := r.URL.Query()
	limit, err := queryInt(q, "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	offset, err := queryInt(q, "offset")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.audit.List(r.Context(), audit.Filter{
		UserID:   principal.ID,
		Action:   q.Get("action"),
		EntityID: q.Get("channel_id"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.writeServiceError(w, r, apperr.Internal("failed to list audit entries", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
