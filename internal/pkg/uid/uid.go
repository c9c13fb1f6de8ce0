// Package uid generates identifiers: numeric row ids, UUIDs and opaque
// random tokens.
package uid

// NumberID produces unique 64-bit ids.
type NumberID interface {
	Generate() int64
}

// StringID produces unique string ids.
type StringID interface {
	Generate() string
}
