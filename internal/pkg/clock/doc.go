// Package clock hides time.Now behind an interface.
//
// Expiry windows, cooldowns and token lifetimes all read the time through a
// Clocker so tests can move time forward deterministically.
package clock
