package tracker

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/lross/livemediad/internal/domain"
	"github.com/lross/livemediad/internal/tracker/mocks"
)

func mockedTracker(t *testing.T) (*MprisTracker, *mocks.MockDBusClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDBusClient(ctrl)

	tr := NewMprisTracker(zap.NewNop())
	tr.conn = client
	tr.player = testPlayer
	tr.owner = ":1.42"
	return tr, client
}

// TestDispatchPlayPauseToggle verifies the toggle consults the playback
// status reported at dispatch time.
func TestDispatchPlayPauseToggle(t *testing.T) {
	tests := []struct {
		name           string
		status         string
		expectedMethod string
	}{
		{"Playing pauses", "Playing", methodPause},
		{"Paused resumes", "Paused", methodPlay},
		{"Stopped resumes", "Stopped", methodPlay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, client := mockedTracker(t)

			client.EXPECT().
				GetProperty(testPlayer, mprisPath, propStatus).
				Return(dbus.MakeVariant(tt.status), nil)
			client.EXPECT().
				Call(testPlayer, mprisPath, tt.expectedMethod).
				Return(nil)

			tr.Dispatch(domain.CommandPlayPause)
		})
	}
}

// TestDispatchPlayPauseStatusUnavailable defaults to Play when the status
// query fails.
func TestDispatchPlayPauseStatusUnavailable(t *testing.T) {
	tr, client := mockedTracker(t)

	client.EXPECT().
		GetProperty(testPlayer, mprisPath, propStatus).
		Return(dbus.Variant{}, errors.New("player gone"))
	client.EXPECT().
		Call(testPlayer, mprisPath, methodPlay).
		Return(nil)

	tr.Dispatch(domain.CommandPlayPause)
}

func TestDispatchSkipCommands(t *testing.T) {
	tests := []struct {
		name           string
		cmd            domain.TransportCommand
		expectedMethod string
	}{
		{"Next", domain.CommandNext, methodNext},
		{"Previous", domain.CommandPrevious, methodPrevious},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, client := mockedTracker(t)

			client.EXPECT().
				Call(testPlayer, mprisPath, tt.expectedMethod).
				Return(nil)

			tr.Dispatch(tt.cmd)
		})
	}
}

// TestDispatchNoSession expects no bus traffic at all when nothing is
// tracked; the controller fails the test on any unexpected call.
func TestDispatchNoSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDBusClient(ctrl)

	tr := NewMprisTracker(zap.NewNop())
	tr.conn = client

	tr.Dispatch(domain.CommandPlayPause)
	tr.Dispatch(domain.CommandNext)
	tr.Raise()
}

func TestDispatchSwallowsCallErrors(t *testing.T) {
	tr, client := mockedTracker(t)

	client.EXPECT().
		Call(testPlayer, mprisPath, methodNext).
		Return(errors.New("player crashed"))

	// Must not panic or propagate
	tr.Dispatch(domain.CommandNext)
}

func TestRaise(t *testing.T) {
	tr, client := mockedTracker(t)

	client.EXPECT().
		Call(testPlayer, mprisPath, methodRaise).
		Return(nil)

	tr.Raise()
}
