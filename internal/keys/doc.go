// Package keys implements channel access key material.
//
// A channel has two capability keys: a read key for dashboards and a write
// key for the device. Each key is an HS256 token carrying the owner, the
// channel id and the role. Tokens are never stored. Only Digest(token) is
// persisted, and access control compares digests, not signatures.
package keys
