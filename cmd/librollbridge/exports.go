//go:build cgo

package main

/*
#include <stdbool.h>
#include <stdint.h>

typedef struct {
	uint8_t tag;
	int32_t frame;
	uint32_t player;
	uint32_t input;
} rb_request;

typedef struct {
	uint32_t addr;
	uint8_t bytes[255];
	uint32_t len;
} rb_message;
*/
import "C"

import (
	"github.com/danmuck/rollbridge/internal/bridge"
	"github.com/danmuck/rollbridge/internal/protocol"
	"github.com/danmuck/rollbridge/internal/registry"
)

//export rb_builder_new
func rb_builder_new() {
	bridge.Default().BuilderNew()
}

//export rb_builder_set_fps
func rb_builder_set_fps(fps C.uint32_t) {
	bridge.Default().BuilderSetFPS(uint32(fps))
}

//export rb_builder_set_max_prediction_window
func rb_builder_set_max_prediction_window(frames C.uint32_t) {
	bridge.Default().BuilderSetMaxPredictionWindow(uint32(frames))
}

//export rb_builder_set_num_players
func rb_builder_set_num_players(n C.uint32_t) {
	bridge.Default().BuilderSetNumPlayers(uint32(n))
}

//export rb_builder_set_sparse_saving
func rb_builder_set_sparse_saving(enabled C.bool) {
	bridge.Default().BuilderSetSparseSaving(bool(enabled))
}

//export rb_builder_set_input_delay
func rb_builder_set_input_delay(frames C.uint32_t) {
	bridge.Default().BuilderSetInputDelay(uint32(frames))
}

//export rb_builder_set_check_distance
func rb_builder_set_check_distance(frames C.uint32_t) {
	bridge.Default().BuilderSetCheckDistance(uint32(frames))
}

//export rb_builder_set_bind_port
func rb_builder_set_bind_port(port C.uint16_t) {
	bridge.Default().BuilderSetBindPort(uint16(port))
}

//export rb_builder_set_native_socket
func rb_builder_set_native_socket(enabled C.bool) {
	bridge.Default().BuilderSetNativeSocket(bool(enabled))
}

//export rb_builder_set_remote_endpoint
func rb_builder_set_remote_endpoint(addr C.uint32_t, hostport *C.char) {
	if hostport == nil {
		return
	}
	bridge.Default().BuilderSetRemoteEndpoint(uint32(addr), C.GoString(hostport))
}

//export rb_builder_add_local_player
func rb_builder_add_local_player(slot C.uint32_t) {
	bridge.Default().BuilderAddLocalPlayer(uint32(slot))
}

//export rb_builder_add_remote_player
func rb_builder_add_remote_player(slot, addr C.uint32_t) {
	bridge.Default().BuilderAddRemotePlayer(uint32(slot), uint32(addr))
}

//export rb_builder_start_synctest_session
func rb_builder_start_synctest_session() C.uint32_t {
	return C.uint32_t(bridge.Default().BuilderStartSyncTestSession())
}

//export rb_builder_start_p2p_session
func rb_builder_start_p2p_session() C.uint32_t {
	return C.uint32_t(bridge.Default().BuilderStartP2PSession())
}

//export rb_session_add_local_input
func rb_session_add_local_input(handle, player, input C.uint32_t) {
	bridge.Default().SessionAddLocalInput(registry.Handle(handle), uint32(player), uint32(input))
}

//export rb_session_advance_frame
func rb_session_advance_frame(handle C.uint32_t) {
	bridge.Default().SessionAdvanceFrame(registry.Handle(handle))
}

//export rb_session_next_request
func rb_session_next_request(handle C.uint32_t) C.rb_request {
	req := bridge.Default().SessionNextRequest(registry.Handle(handle))
	return C.rb_request{
		tag:    C.uint8_t(req.Tag),
		frame:  C.int32_t(req.Frame),
		player: C.uint32_t(req.Player),
		input:  C.uint32_t(req.Input),
	}
}

//export rb_session_poll_remote_clients
func rb_session_poll_remote_clients(handle C.uint32_t) {
	bridge.Default().SessionPollRemoteClients(registry.Handle(handle))
}

//export rb_session_current_state
func rb_session_current_state(handle C.uint32_t) C.uint8_t {
	return C.uint8_t(stateCode(bridge.Default().SessionCurrentState(registry.Handle(handle))))
}

//export rb_session_frames_ahead
func rb_session_frames_ahead(handle C.uint32_t) C.int32_t {
	return C.int32_t(bridge.Default().SessionFramesAhead(registry.Handle(handle)))
}

//export rb_session_close
func rb_session_close(handle C.uint32_t) C.bool {
	return C.bool(bridge.Default().SessionClose(registry.Handle(handle)))
}

//export rb_transport_push_inbound
func rb_transport_push_inbound(handle C.uint32_t, msg *C.rb_message) C.int32_t {
	if msg == nil {
		return C.int32_t(pushRejected)
	}
	in := protocol.Message{Addr: uint32(msg.addr), Len: uint32(msg.len)}
	for i := range in.Bytes {
		in.Bytes[i] = byte(msg.bytes[i])
	}
	return C.int32_t(pushCode(bridge.Default().TransportPushInbound(registry.Handle(handle), in)))
}

//export rb_transport_pull_outbound
func rb_transport_pull_outbound(handle C.uint32_t, out *C.rb_message) C.bool {
	if out == nil {
		return false
	}
	msg, ok := bridge.Default().TransportPullOutbound(registry.Handle(handle))
	if !ok {
		return false
	}
	out.addr = C.uint32_t(msg.Addr)
	out.len = C.uint32_t(msg.Len)
	for i, v := range msg.Bytes {
		out.bytes[i] = C.uint8_t(v)
	}
	return true
}
