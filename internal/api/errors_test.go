package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/sensorhub/internal/apperr"
	"github.com/nerrad567/sensorhub/internal/infrastructure/logging"
)

func TestWriteServiceError(t *testing.T) {
	srv := &Server{logger: logging.Discard()}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
		wantReqID  bool
	}{
		{"not found", apperr.NotFound("channel not found"), http.StatusNotFound, "not_found", "channel not found", false},
		{"unauthorized", apperr.Unauthorized("invalid write key"), http.StatusUnauthorized, "unauthorized", "invalid write key", false},
		{"invalid input", apperr.InvalidInput("%s is required", "humidity"), http.StatusBadRequest, "invalid_input", "humidity is required", false},
		{"wrapped", fmt.Errorf("ingest: %w", apperr.NotFound("channel not found")), http.StatusNotFound, "not_found", "channel not found", false},
		{"internal", apperr.Internal("failed to store feed", errors.New("disk I/O error")), http.StatusInternalServerError, "internal", "failed to store feed", true},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "internal", "internal error", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/feeds", nil)
			req = req.WithContext(context.WithValue(req.Context(), ctxKeyRequestID, "req-42"))
			rec := httptest.NewRecorder()

			srv.writeServiceError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var got ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if got.Error.Code != tt.wantCode || got.Error.Message != tt.wantMsg {
				t.Errorf("error = %+v, want %s/%q", got.Error, tt.wantCode, tt.wantMsg)
			}
			if (got.Error.RequestID == "req-42") != tt.wantReqID {
				t.Errorf("RequestID = %q, wantReqID %v", got.Error.RequestID, tt.wantReqID)
			}
			if strings.Contains(rec.Body.String(), "disk I/O") {
				t.Error("internal cause leaked to client")
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := &Server{logger: logging.Discard()}
	handler := srv.requestIDMiddleware(srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler bug")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var got ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.Error.RequestID == "" || got.Error.RequestID != rec.Header().Get("X-Request-ID") {
		t.Errorf("RequestID = %q, header %q", got.Error.RequestID, rec.Header().Get("X-Request-ID"))
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, ok := bearerToken(req)
			if got != tt.want || ok != tt.ok {
				t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestJoinOrDefault(t *testing.T) {
	if got := joinOrDefault(nil, "GET"); got != "GET" {
		t.Errorf("joinOrDefault(nil) = %q", got)
	}
	if got := joinOrDefault([]string{"GET", "POST"}, "x"); got != "GET, POST" {
		t.Errorf("joinOrDefault = %q", got)
	}
}
