package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sensorhub/internal/auth"
	"github.com/nerrad567/sensorhub/internal/channel"
)

// issueKeysRequest is the request body for POST /channels/{id}/keys.
type issueKeysRequest struct {
	Email string `json:"email"`
}

// validateKeysRequest is the request body for POST /channels/{id}/validate-keys.
type validateKeysRequest struct {
	ReadKey  string `json:"read_key"`
	WriteKey string `json:"write_key"`
}

type validateKeysResponse struct {
	ReadKeyValid  bool `json:"read_key_valid"`
	WriteKeyValid bool `json:"write_key_valid"`
}

// handleCreateChannel creates a channel owned by the caller. The response
// carries key digests only; raw keys come from POST /channels/{id}/keys.
func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context()) //nolint:errcheck // set by authMiddleware

	var in channel.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	created, err := s.channels.CreateWithKeys(r.Context(), principal.ID, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListChannels returns the caller's channels.
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context()) //nolint:errcheck // set by authMiddleware

	views, err := s.channels.FindAllForOwner(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": views,
		"count":    len(views),
	})
}

// handleGetChannel returns one of the caller's channels.
func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context()) //nolint:errcheck // set by authMiddleware
	id := chi.URLParam(r, "id")

	if _, err := s.channels.RequireOwner(r.Context(), id, principal.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	view, err := s.channels.FindByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleUpdateChannel applies a bounded patch. Key material cannot be
// changed here.
func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context()) //nolint:errcheck // set by authMiddleware

	var patch channel.Patch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	view, err := s.channels.Update(r.Context(), principal.ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleIssueKeys replaces both channel keys and returns the raw values.
// The caller must own the channel and confirm the owner's email.
func (s *Server) handleIssueKeys(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context()) //nolint:errcheck // set by authMiddleware
	id := chi.URLParam(r, "id")

	var req issueKeysRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	if _, err := s.channels.RequireOwner(r.Context(), id, principal.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	issued, err := s.channels.ReissueKeys(r.Context(), id, req.Email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, issued)
}

// handleChannelThresholds returns the thresholds in force for a channel.
func (s *Server) handleChannelThresholds(w http.ResponseWriter, r *http.Request) {
	readKey := r.URL.Query().Get("read_key")
	if readKey == "" {
		writeUnauthorized(w, "read_key is required")
		return
	}

	thresholds, err := s.feeds.CurrentThresholds(r.Context(), chi.URLParam(r, "id"), readKey)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thresholds)
}

// handleValidateKeys reports whether each supplied key is the channel's
// current key.
func (s *Server) handleValidateKeys(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req validateKeysRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	readOK, err := s.channels.VerifyReadKey(r.Context(), id, req.ReadKey)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK, err := s.channels.VerifyWriteKey(r.Context(), id, req.WriteKey)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validateKeysResponse{ReadKeyValid: readOK, WriteKeyValid: writeOK})
}
