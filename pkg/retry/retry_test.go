package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/orgball2608/storycam/pkg/errors"
	"github.com/orgball2608/storycam/pkg/logger"
)

func fastConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), logger.NewNop(), "upload", func() error {
		calls++
		if calls < 3 {
			return stderrors.New("connection reset")
		}
		return nil
	}, fastConfig())

	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), logger.NewNop(), "upload", func() error {
		calls++
		return stderrors.New("bucket offline")
	}, fastConfig())

	if err == nil {
		t.Fatal("Do() succeeded, want error")
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDoStopsOnPermanentErrors(t *testing.T) {
	for _, sentinel := range []error{errors.ErrInvalidInput, errors.ErrPermissionDenied} {
		calls := 0
		err := Do(context.Background(), logger.NewNop(), "upload", func() error {
			calls++
			return errors.Wrap(sentinel, "rejected")
		}, fastConfig())

		if !stderrors.Is(err, sentinel) {
			t.Errorf("Do() = %v, want %v", err, sentinel)
		}
		if calls != 1 {
			t.Errorf("calls = %d for %v, want 1", calls, sentinel)
		}
	}
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, logger.NewNop(), "upload", func() error {
		calls++
		return stderrors.New("connection reset")
	}, fastConfig())

	if err == nil {
		t.Fatal("Do() succeeded with a cancelled context")
	}
	if calls > 1 {
		t.Errorf("calls = %d, want at most 1", calls)
	}
}
