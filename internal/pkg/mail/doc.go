// Package mail sends email through an SMTP relay.
package mail
