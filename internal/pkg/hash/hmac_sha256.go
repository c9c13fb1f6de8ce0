package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSHA256 produces hex encoded keyed digests.
type HMACSHA256 struct {
	secret []byte
}

func NewHMACSHA256(secret string) *HMACSHA256 {
	return &HMACSHA256{secret: []byte(secret)}
}

func (s *HMACSHA256) Hash(plaintext string) ([]byte, error) {
	return []byte(s.Digest(plaintext)), nil
}

// Digest is Hash for callers that want a string and cannot fail.
func (s *HMACSHA256) Digest(plaintext string) string {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(plaintext))
	return hex.EncodeToString(m.Sum(nil))
}

// Verify compares in constant time.
func (s *HMACSHA256) Verify(hashed, plaintext string) bool {
	return hmac.Equal([]byte(hashed), []byte(s.Digest(plaintext)))
}
