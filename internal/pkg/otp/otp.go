package otp

import (
	"crypto/rand"
	"math/big"

	"github.com/pquerna/otp"
)

// Generator creates a fresh code on every call.
type Generator interface {
	Generate() (string, error)
}

// Numeric draws codes uniformly from [10^(d-1), 10^d - 1], so every code has
// exactly d digits and never a leading zero.
type Numeric struct {
	digits otp.Digits
	low    int64
	span   *big.Int
}

// NewNumeric accepts 4 to 8 digits and falls back to 5 otherwise.
func NewNumeric(digits int) *Numeric {
	if digits < 4 || digits > 8 {
		digits = 5
	}

	low := int64(1)
	for range digits - 1 {
		low *= 10
	}

	return &Numeric{
		digits: otp.Digits(digits),
		low:    low,
		span:   big.NewInt(low*10 - low),
	}
}

func (n *Numeric) Generate() (string, error) {
	v, err := rand.Int(rand.Reader, n.span)
	if err != nil {
		return "", err
	}
	return n.digits.Format(int32(n.low + v.Int64())), nil
}

// Length is the number of digits every code has.
func (n *Numeric) Length() int {
	return n.digits.Length()
}
