package bridge

import (
	"errors"
	"testing"

	"github.com/danmuck/rollbridge/internal/registry"
	"github.com/danmuck/rollbridge/internal/testutil/testlog"
)

func TestDefaultSettings(t *testing.T) {
	testlog.Start(t)
	s := DefaultSettings()
	if s.MaxPrediction != 8 || s.FPS != 60 || s.NumPlayers != 2 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.SparseSaving || s.InputDelay != 0 || s.CheckDistance != 0 || s.NativeSocket {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestBuildFailuresRegisterNothing(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name  string
		mode  Mode
		setup func(b *Bridge)
		want  error
	}{
		{"zero prediction", ModeSyncTest, func(b *Bridge) { b.BuilderSetMaxPredictionWindow(0) }, ErrInvalidPrediction},
		{"zero fps", ModeSyncTest, func(b *Bridge) { b.BuilderSetFPS(0) }, ErrInvalidFPS},
		{"zero players", ModeSyncTest, func(b *Bridge) { b.BuilderSetNumPlayers(0) }, ErrInvalidPlayers},
		{"check distance", ModeSyncTest, func(b *Bridge) { b.BuilderSetCheckDistance(8) }, ErrCheckDistance},
		{"input delay", ModeSyncTest, func(b *Bridge) { b.BuilderSetInputDelay(1000) }, ErrInvalidDelay},
		{"synctest duplicate slot", ModeSyncTest, func(b *Bridge) {
			b.BuilderAddLocalPlayer(0)
			b.BuilderAddLocalPlayer(0)
		}, ErrDuplicatePlayer},
		{"synctest slot out of range", ModeSyncTest, func(b *Bridge) { b.BuilderAddLocalPlayer(7) }, ErrPlayerOutOfRange},
		{"synctest remote out of range", ModeSyncTest, func(b *Bridge) { b.BuilderAddRemotePlayer(2, 1) }, ErrPlayerOutOfRange},
		{"duplicate slot", ModeP2P, func(b *Bridge) {
			b.BuilderAddLocalPlayer(0)
			b.BuilderAddRemotePlayer(0, 1)
		}, ErrDuplicatePlayer},
		{"slot out of range", ModeP2P, func(b *Bridge) {
			b.BuilderAddLocalPlayer(0)
			b.BuilderAddRemotePlayer(5, 1)
		}, ErrPlayerOutOfRange},
		{"missing slot", ModeP2P, func(b *Bridge) { b.BuilderAddLocalPlayer(0) }, ErrMissingPlayers},
		{"native without endpoint", ModeP2P, func(b *Bridge) {
			b.BuilderSetNativeSocket(true)
			b.BuilderAddLocalPlayer(0)
			b.BuilderAddRemotePlayer(1, 4)
		}, ErrInvalidEndpoint},
		{"native bad endpoint", ModeP2P, func(b *Bridge) {
			b.BuilderSetNativeSocket(true)
			b.BuilderSetRemoteEndpoint(4, "nowhere")
			b.BuilderAddLocalPlayer(0)
			b.BuilderAddRemotePlayer(1, 4)
		}, ErrInvalidEndpoint},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBridge(t)
			tc.setup(b)
			staged := b.BuilderSettings()

			h, err := b.Build(tc.mode)
			if h != registry.Invalid {
				t.Fatalf("expected invalid handle, got %d", h)
			}
			var buildErr *BuildError
			if !errors.As(err, &buildErr) || buildErr.Mode != tc.mode {
				t.Fatalf("expected *BuildError for %s, got %v", tc.mode, err)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if n := len(b.Sessions()); n != 0 {
				t.Fatalf("expected nothing registered, got %d sessions", n)
			}
			after := b.BuilderSettings()
			if after.MaxPrediction != staged.MaxPrediction || len(after.LocalPlayers) != len(staged.LocalPlayers) ||
				len(after.RemotePlayers) != len(staged.RemotePlayers) || after.NativeSocket != staged.NativeSocket {
				t.Fatalf("expected staged settings kept after failure: before=%+v after=%+v", staged, after)
			}
		})
	}
}

func TestBuildResetsSettingsOnSuccess(t *testing.T) {
	testlog.Start(t)
	b := newTestBridge(t)
	b.BuilderSetNumPlayers(3)
	b.BuilderSetFPS(30)
	b.BuilderAddLocalPlayer(2)

	h, err := b.Build(ModeSyncTest)
	if err != nil || h == registry.Invalid {
		t.Fatalf("build: h=%d err=%v", h, err)
	}
	info, ok := b.Session(h)
	if !ok || info.Settings.NumPlayers != 3 || info.Settings.FPS != 30 {
		t.Fatalf("expected session to keep its snapshot, got %+v", info.Settings)
	}
	after := b.BuilderSettings()
	if after.NumPlayers != 2 || after.FPS != 60 || len(after.LocalPlayers) != 0 {
		t.Fatalf("expected defaults after build, got %+v", after)
	}
}

func TestBuilderNewResets(t *testing.T) {
	testlog.Start(t)
	b := newTestBridge(t)
	b.BuilderSetSparseSaving(true)
	b.BuilderSetBindPort(7000)
	b.BuilderSetRemoteEndpoint(1, "127.0.0.1:7001")
	b.BuilderNew()
	s := b.BuilderSettings()
	if s.SparseSaving || s.BindPort != 0 || len(s.Endpoints) != 0 {
		t.Fatalf("expected reset settings, got %+v", s)
	}
}

func TestSettingsSnapshotIsIndependent(t *testing.T) {
	testlog.Start(t)
	b := NewBuilder()
	b.AddLocalPlayer(0)
	snap := b.Settings()
	b.AddLocalPlayer(1)
	if len(snap.LocalPlayers) != 1 {
		t.Fatalf("expected snapshot to be unaffected, got %v", snap.LocalPlayers)
	}
}

func TestBuildErrorMessage(t *testing.T) {
	testlog.Start(t)
	err := &BuildError{Mode: ModeP2P, Err: ErrMissingPlayers}
	want := "bridge: build p2p session: bridge: player slot has no owner"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
