// Package event holds the contracts of messages exchanged between modules.
package event

// HeaderCorrelationID carries the correlation id of the originating request.
const HeaderCorrelationID string = "cID"
