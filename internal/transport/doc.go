// Package transport satisfies the engine's non-blocking socket contract.
//
// Ownership boundary:
// - Bridge: caller-drained outbound/inbound queues of codec-framed messages
// - UDPSocket: native socket used when the caller does not carry packets
package transport
