// Package hash turns secrets into values safe to store.
//
// Passwords go through Bcrypt. Short lived secrets that must be looked up by
// value (OTP codes, opaque keys, refresh tokens, revoked access tokens) go
// through HMACSHA256, which is deterministic so it can back a unique index.
package hash

// Hash is a one way transform with verification.
type Hash interface {
	Hash(plaintext string) ([]byte, error)
	Verify(hashed, plaintext string) bool
}
