// Package protocol owns the boundary wire records and the peer message codec.
//
// Ownership boundary:
// - fixed-layout Request and Message records handed across the boundary
// - CBOR encode/decode of engine messages into bounded buffers
package protocol
