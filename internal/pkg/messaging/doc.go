// Package messaging publishes and consumes domain events over a pluggable
// broker: NSQ, NATS, Kafka, Google Pub/Sub or an in-process bus.
//
// Delivery is at least once. A handler returning nil acknowledges the
// message; an error asks the broker to redeliver it.
package messaging
