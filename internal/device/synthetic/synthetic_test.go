package synthetic

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/storycam/internal/device"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/pkg/errors"
)

func TestOpenSingleHandle(t *testing.T) {
	d := New(Options{})
	ctx := context.Background()

	s, err := d.Open(ctx, domain.FacingUser, device.Constraints{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := d.Open(ctx, domain.FacingEnvironment, device.Constraints{}); !errors.IsDeviceUnavailable(err) {
		t.Errorf("second Open() = %v, want device unavailable", err)
	}

	s.Stop()
	s.Stop()
	if d.Active() != 0 {
		t.Errorf("Active() = %d after double Stop, want 0", d.Active())
	}
	if _, err := s.Frame(); !errors.IsDeviceUnavailable(err) {
		t.Errorf("Frame() on stopped stream = %v", err)
	}
}

func TestTorchOnlyOnEnvironmentCamera(t *testing.T) {
	d := New(Options{Torch: true})
	ctx := context.Background()

	user, err := d.Open(ctx, domain.FacingUser, device.Constraints{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if user.Capabilities().HasTorch {
		t.Error("user camera reports a torch")
	}
	on := true
	if err := user.Apply(device.Constraints{Torch: &on}); err == nil {
		t.Error("torch applied on user camera")
	}
	user.Stop()

	env, err := d.Open(ctx, domain.FacingEnvironment, device.Constraints{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer env.Stop()
	if err := env.Apply(device.Constraints{Torch: &on}); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if !d.Current().Torch() {
		t.Error("torch not lit")
	}
}

func TestEncoderChunks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := New(Options{Clock: clock})

	s, err := d.Open(context.Background(), domain.FacingUser, device.Constraints{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Stop()

	enc, err := s.NewEncoder(device.EncoderOptions{MIMEType: "video/webm", BitsPerSecond: 8000})
	if err != nil {
		t.Fatalf("NewEncoder() failed: %v", err)
	}
	chunks, err := enc.Start(time.Second)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if _, err := enc.Start(time.Second); err == nil {
		t.Error("second Start() succeeded")
	}

	clock.Advance(1500 * time.Millisecond)
	if err := enc.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	total := 0
	for c := range chunks {
		total += len(c)
	}
	if total != 1500 {
		t.Errorf("bytes = %d, want 1500", total)
	}
}

func TestEncoderAbortSkipsFlush(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := New(Options{Clock: clock})

	s, err := d.Open(context.Background(), domain.FacingUser, device.Constraints{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Stop()

	enc, err := s.NewEncoder(device.EncoderOptions{MIMEType: "video/mp4", BitsPerSecond: 8000})
	if err != nil {
		t.Fatalf("NewEncoder() failed: %v", err)
	}
	chunks, err := enc.Start(time.Second)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	clock.Advance(500 * time.Millisecond)
	enc.Abort()
	enc.Stop()

	for c := range chunks {
		if len(c) > 0 {
			t.Errorf("aborted encoder flushed %d bytes", len(c))
		}
	}
}

func TestUnsupportedMIME(t *testing.T) {
	d := New(Options{MIMETypes: []string{"video/webm"}})
	s, err := d.Open(context.Background(), domain.FacingUser, device.Constraints{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Stop()

	if s.SupportsMIME("video/mp4") {
		t.Error("SupportsMIME(mp4) = true")
	}
	if _, err := s.NewEncoder(device.EncoderOptions{MIMEType: "video/mp4"}); !errors.IsDeviceUnavailable(err) {
		t.Errorf("NewEncoder(mp4) = %v, want device unavailable", err)
	}
}
