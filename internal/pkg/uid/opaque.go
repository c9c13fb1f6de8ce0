package uid

import (
	"crypto/rand"
	"encoding/hex"
)

// Opaque generates unguessable 64 character hex tokens from 32 random bytes.
// They are handed to clients as OTP keys, confirm tokens and refresh tokens.
type Opaque struct{}

func NewOpaque() *Opaque {
	return &Opaque{}
}

func (*Opaque) Generate() string {
	var b [32]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
