// Package api implements the HTTP REST API and WebSocket server for SensorHub.
//
// This package provides:
//   - Owner endpoints for channel management and key issuance
//   - Device endpoints for feed ingestion using a channel write key
//   - Read endpoints for feed history using a read key or owner token
//   - A WebSocket endpoint for per-channel realtime rooms
//   - Middleware stack (request ID, logging, metrics, recovery, CORS, body limit)
//
// # Architecture
//
// Handlers are thin. They decode the request, pick the admission path
// (write key, read key or owner token) and delegate to the channel and feed
// services. Every service error is an *apperr.Error and is mapped to an HTTP
// status in one place (writeServiceError).
//
// # Security
//
// Owners authenticate with a bearer access token. WebSocket connections may
// carry a single-use ticket, obtained from POST /auth/ws-ticket, so that the
// access token never appears in a URL. Connections without a ticket may only
// join rooms by presenting a read key.
//
// Raw channel keys are never logged.
package api
