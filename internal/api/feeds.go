package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sensorhub/internal/apperr"
	"github.com/nerrad567/sensorhub/internal/auth"
	"github.com/nerrad567/sensorhub/internal/feed"
)

// ingestRequest is the request body for POST /feeds/ingest.
type ingestRequest struct {
	ChannelID string `json:"channel_id"`
	WriteKey  string `json:"write_key"`
	feed.Reading
}

// createFeedRequest is the request body for the owner path, POST /feeds.
type createFeedRequest struct {
	ChannelID string `json:"channel_id"`
	feed.Reading
}

// handleIngestFeed stores a reading authorised by the channel write key.
func (s *Server) handleIngestFeed(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.ingestWithWriteKey(w, r, req)
}

// handleIngestFeedQuery is the device-friendly form of handleIngestFeed for
// firmware that can only issue GET requests with query parameters.
func (s *Server) handleIngestFeedQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ingestRequest{
		ChannelID: q.Get("channel_id"),
		WriteKey:  q.Get("write_key"),
	}

	fields := []struct {
		name string
		dst  **float64
	}{
		{"temperature", &req.Temperature},
		{"humidity", &req.Humidity},
		{"temperature_threshold", &req.TemperatureThreshold},
		{"humidity_threshold", &req.HumidityThreshold},
	}
	for _, f := range fields {
		v, err := queryFloat(q, f.name)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		*f.dst = v
	}

	s.ingestWithWriteKey(w, r, req)
}

func (s *Server) ingestWithWriteKey(w http.ResponseWriter, r *http.Request, req ingestRequest) {
	if req.ChannelID == "" {
		writeBadRequest(w, "channel_id is required")
		return
	}
	if req.WriteKey == "" {
		writeUnauthorized(w, "write_key is required")
		return
	}

	created, err := s.feeds.IngestWithWriteKey(r.Context(), feed.PathWriteKey, req.ChannelID, req.WriteKey, req.Reading)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleCreateFeed stores a reading on behalf of the channel owner.
func (s *Server) handleCreateFeed(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context()) //nolint:errcheck // set by authMiddleware

	var req createFeedRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if req.ChannelID == "" {
		writeBadRequest(w, "channel_id is required")
		return
	}

	created, err := s.feeds.IngestAsOwner(r.Context(), principal.ID, req.ChannelID, req.Reading)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListFeeds returns one page of a channel's history. The caller
// presents either ?read_key= or an owner bearer token.
func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	channelID := q.Get("channel_id")
	if channelID == "" {
		writeBadRequest(w, "channel_id is required")
		return
	}

	opts, err := listOptionsFromQuery(q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var page *feed.Page
	if readKey := q.Get("read_key"); readKey != "" {
		page, err = s.feeds.ListWithReadKey(r.Context(), channelID, readKey, opts)
	} else if principal, ok := auth.PrincipalFrom(r.Context()); ok {
		page, err = s.feeds.ListForOwner(r.Context(), principal.ID, channelID, opts)
	} else {
		writeUnauthorized(w, "read_key or bearer token is required")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetFeed returns one reading. Same admission rules as handleListFeeds.
func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		f   *feed.Populated
		err error
	)
	if readKey := r.URL.Query().Get("read_key"); readKey != "" {
		f, err = s.feeds.GetWithReadKey(r.Context(), id, readKey)
	} else if principal, ok := auth.PrincipalFrom(r.Context()); ok {
		f, err = s.feeds.GetForOwner(r.Context(), principal.ID, id)
	} else {
		writeUnauthorized(w, "read_key or bearer token is required")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// listOptionsFromQuery reads page, size, sort_by and order_by. The
// camelCase spellings sortBy and orderBy are accepted too.
func listOptionsFromQuery(q url.Values) (feed.ListOptions, error) {
	page, err := queryInt(q, "page")
	if err != nil {
		return feed.ListOptions{}, err
	}
	size, err := queryInt(q, "size")
	if err != nil {
		return feed.ListOptions{}, err
	}
	return feed.ListOptions{
		Page:    page,
		Size:    size,
		SortBy:  firstOf(q, "sort_by", "sortBy"),
		OrderBy: firstOf(q, "order_by", "orderBy"),
	}, nil
}

// queryInt parses an optional integer parameter. Absent means zero.
func queryInt(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidInput("%s must be an integer", name)
	}
	return n, nil
}

// queryFloat parses an optional number parameter. Absent means nil.
func queryFloat(q url.Values, name string) (*float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.InvalidInput("%s must be a number", name)
	}
	return &v, nil
}

func firstOf(q url.Values, names ...string) string {
	for _, n := range names {
		if v := q.Get(n); v != "" {
			return v
		}
	}
	return ""
}
