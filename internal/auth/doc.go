// Package auth is the owner identity provider for SensorHub.
//
// It provides:
//   - Owner registration and login with Argon2id password hashes
//   - HS256 access tokens carrying the owner id and email
//   - A Principal type placed in the request context by the API
//   - Lookups by id or email that exclude soft-deleted accounts
//
// Channel keys are not handled here; see package keys.
package auth
