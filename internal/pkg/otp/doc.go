// Package otp generates the numeric one time codes sent to users.
package otp
