// Package ws relays engine log messages to websocket viewers.
//
// The package implements:
//   - Registry: the set of currently open viewer connections
//   - Hub: fans one message out to every registered connection and prunes
//     the ones that fail to accept it
//   - Client: one viewer connection with its own bounded send queue
//   - Handler: upgrades HTTP requests and runs the read/write pumps
//   - Service: owns the hub goroutine that serializes every delivery
//
// Key properties:
//   - Publishing never blocks the caller; the hub goroutine drains a queue
//   - Messages from one producer reach each viewer in the order published
//   - A late viewer first receives the recent history, then live lines
//   - Inbound frames are discarded; they only keep the connection alive
package ws
