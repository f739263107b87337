// Package rollback is the in-process rollback session engine driven by the bridge.
//
// Ownership boundary:
// - SyncTest and peer-to-peer sessions
// - request batches carrying save/load capabilities
// - the non-blocking socket contract and protocol messages
//
// The bridge treats this package as an external collaborator: it only uses the
// exported session, request, and socket types.
package rollback
