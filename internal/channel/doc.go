// Package channel owns sensor channels and their read/write key pairs.
//
// A channel is created together with its key pair. Only the SHA-256 digests
// of the keys are stored. Every response object carries a digest of the
// stored digest, never the stored value itself, so nothing a client sees
// can be presented back as a key. The raw keys leave the process once, in
// the response to an explicit key issuance.
//
// Key reissue is an optimistic conditional update on key_version, so two
// concurrent reissues cannot interleave their hash pairs.
package channel
