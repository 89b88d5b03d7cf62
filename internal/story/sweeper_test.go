package story

import (
	"context"
	"testing"
	"time"

	"github.com/orgball2608/storycam/internal/domain"
)

func TestScheduleSweep(t *testing.T) {
	s, clock := newTestStore()
	mustAppend(t, s, alice, photo, domain.Retention24h)
	clock.Advance(25 * time.Hour)

	sw, err := s.ScheduleSweep(context.Background(), SweepOpts{Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("ScheduleSweep() failed: %v", err)
	}
	defer sw.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.RLock()
		_, ok := s.collections[alice.ID]
		s.mu.RUnlock()
		if !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expired collection was never swept")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSweeperStop(t *testing.T) {
	s, _ := newTestStore()

	sw, err := s.ScheduleSweep(context.Background(), SweepOpts{Interval: time.Hour, Timezone: "Asia/Ho_Chi_Minh"})
	if err != nil {
		t.Fatalf("ScheduleSweep() failed: %v", err)
	}
	if err := sw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := sw.Stop(); err != nil {
		t.Errorf("second Stop() = %v, want nil", err)
	}
}

func TestSweeperStopsWithContext(t *testing.T) {
	s, _ := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())

	sw, err := s.ScheduleSweep(ctx, SweepOpts{Interval: time.Hour, Timezone: "Not/AZone"})
	if err != nil {
		t.Fatalf("ScheduleSweep() failed: %v", err)
	}
	cancel()

	select {
	case <-sw.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop when its context was cancelled")
	}
}
