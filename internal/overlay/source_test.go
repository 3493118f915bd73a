package overlay

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestDBusSourceStopWithoutStart(t *testing.T) {
	s := NewDBusSource(zap.NewNop(), NewSignal())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop without Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("double Stop: %v", err)
	}
}
