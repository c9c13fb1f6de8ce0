// Package jwt signs and verifies the HS512 access tokens handed out after a
// successful login or OTP verification, and moves verified claims through a
// request context.
package jwt
