// Package synthetic is a test-pattern camera. It stands in for real hardware
// in the demo binary and in tests: it enforces one open handle at a time,
// reports a torch only on the environment camera and encodes video as
// bitrate-sized byte chunks.
package synthetic

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/storycam/internal/device"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/pkg/errors"
)

var (
	Left  = color.RGBA{R: 255, A: 255}
	Right = color.RGBA{B: 255, A: 255}
)

type Options struct {
	Clock       clockwork.Clock
	Width       int
	Height      int
	Torch       bool
	Zoom        *domain.Range
	MIMETypes   []string
	EmptyOutput bool
	OpenDelay   time.Duration
}

type Driver struct {
	opts Options

	mu          sync.Mutex
	denied      bool
	unavailable bool
	active      int
	maxActive   int
	opens       int
	current     *Stream
}

func New(opts Options) *Driver {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 64, 48
	}
	if len(opts.MIMETypes) == 0 {
		opts.MIMETypes = []string{"video/mp4", "video/webm"}
	}
	return &Driver{opts: opts}
}

// SetPermissionDenied makes subsequent opens fail as if the user declined access.
func (d *Driver) SetPermissionDenied(denied bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.denied = denied
}

// SetUnavailable makes subsequent opens fail as if the hardware were busy.
func (d *Driver) SetUnavailable(unavailable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unavailable = unavailable
}

func (d *Driver) Open(ctx context.Context, facing domain.Facing, c device.Constraints) (device.Stream, error) {
	if d.opts.OpenDelay > 0 {
		select {
		case <-d.opts.Clock.After(d.opts.OpenDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", errors.ErrDeviceUnavailable, ctx.Err())
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.denied:
		return nil, errors.WrapWithCode(errors.ErrPermissionDenied, errors.CodePermissionDenied, "camera access denied")
	case d.unavailable:
		return nil, errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "camera unavailable")
	case d.active > 0:
		return nil, errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "camera already in use")
	}

	d.active++
	d.opens++
	d.maxActive = max(d.maxActive, d.active)

	caps := domain.Capabilities{HasFocus: facing == domain.FacingEnvironment}
	if facing == domain.FacingEnvironment {
		caps.HasTorch = d.opts.Torch
	}
	if d.opts.Zoom != nil {
		z := *d.opts.Zoom
		caps.Zoom = &z
	}

	s := &Stream{driver: d, facing: facing, caps: caps, live: true, zoom: 1}
	if c.Zoom != nil && caps.Zoom != nil {
		s.zoom = caps.Zoom.Clamp(*c.Zoom)
	}
	d.current = s
	return s, nil
}

// Active is the number of streams currently open.
func (d *Driver) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// MaxActive is the highest number of streams ever open at once.
func (d *Driver) MaxActive() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxActive
}

// Current is the most recently opened stream, live or not.
func (d *Driver) Current() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *Driver) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

func (d *Driver) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active--
}

type Stream struct {
	driver *Driver
	facing domain.Facing
	caps   domain.Capabilities

	mu    sync.Mutex
	live  bool
	torch bool
	zoom  float64
}

func (s *Stream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *Stream) Capabilities() domain.Capabilities {
	return s.caps
}

func (s *Stream) Facing() domain.Facing {
	return s.facing
}

func (s *Stream) Torch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torch
}

func (s *Stream) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

func (s *Stream) Apply(c device.Constraints) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.live {
		return errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "track ended")
	}
	if c.Torch != nil {
		if !s.caps.HasTorch {
			return errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "torch not supported")
		}
		s.torch = *c.Torch
	}
	if c.Zoom != nil {
		if s.caps.Zoom == nil {
			return errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "zoom not supported")
		}
		s.zoom = s.caps.Zoom.Clamp(*c.Zoom)
	}
	return nil
}

// Frame renders the raw sensor image: Left colour on the left half, Right
// colour on the right half.
func (s *Stream) Frame() (image.Image, error) {
	if !s.Live() {
		return nil, errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "track ended")
	}
	w, h := s.driver.opts.Width, s.driver.opts.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetRGBA(x, y, Left)
			} else {
				img.SetRGBA(x, y, Right)
			}
		}
	}
	return img, nil
}

func (s *Stream) SupportsMIME(mimeType string) bool {
	return slices.Contains(s.driver.opts.MIMETypes, mimeType)
}

func (s *Stream) NewEncoder(opts device.EncoderOptions) (device.Encoder, error) {
	if !s.Live() {
		return nil, errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "track ended")
	}
	if !s.SupportsMIME(opts.MIMEType) {
		return nil, errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "unsupported mime type "+opts.MIMEType)
	}
	return &encoder{
		clock: s.driver.opts.Clock,
		bps:   opts.BitsPerSecond,
		empty: s.driver.opts.EmptyOutput,
		stop:  make(chan bool, 1),
	}, nil
}

func (s *Stream) Stop() {
	s.mu.Lock()
	wasLive := s.live
	s.live = false
	s.torch = false
	s.mu.Unlock()

	if wasLive {
		s.driver.release()
	}
}

type encoder struct {
	clock clockwork.Clock
	bps   int
	empty bool

	mu      sync.Mutex
	started bool
	once    sync.Once
	stop    chan bool
}

func (e *encoder) Start(timeslice time.Duration) (<-chan []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil, errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "encoder already started")
	}
	e.started = true

	out := make(chan []byte, 16)
	ticker := e.clock.NewTicker(timeslice)
	last := e.clock.Now()

	go func() {
		defer close(out)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.Chan():
				now := e.clock.Now()
				out <- e.chunk(now.Sub(last))
				last = now
			case flush := <-e.stop:
				if flush {
					out <- e.chunk(e.clock.Now().Sub(last))
				}
				return
			}
		}
	}()

	return out, nil
}

func (e *encoder) Stop() error {
	e.once.Do(func() { e.stop <- true })
	return nil
}

func (e *encoder) Abort() {
	e.once.Do(func() { e.stop <- false })
}

// chunk sizes output by bitrate; no time elapsed means no data.
func (e *encoder) chunk(d time.Duration) []byte {
	if e.empty || d <= 0 {
		return nil
	}
	n := int(float64(e.bps) / 8 * d.Seconds())
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

var _ device.Driver = (*Driver)(nil)
var _ device.Stream = (*Stream)(nil)
