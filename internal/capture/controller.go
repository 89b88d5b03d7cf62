package capture

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/storycam/internal/device"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/internal/gesture"
	"github.com/orgball2608/storycam/internal/recorder"
	"github.com/orgball2608/storycam/pkg/errors"
	"github.com/orgball2608/storycam/pkg/logger"
)

const DefaultFinalizeTimeout = 5 * time.Second

type Config struct {
	Facing          domain.Facing
	Gesture         gesture.Config
	Recorder        recorder.Config
	FinalizeTimeout time.Duration
}

type Opts struct {
	Config Config
	Driver device.Driver
	Clock  clockwork.Clock
	Logger logger.Logger
	// Admit, when set, can turn a press away before anything is captured.
	Admit func() error
}

// Listener receives every finished capture exactly once.
type Listener func(file domain.MediaFile, kind domain.MediaKind)

// Controller drives one camera session through a single shutter control:
// a short tap takes a photo, a hold records video up to the ceiling.
type Controller struct {
	cfg    Config
	logger logger.Logger
	admit  func() error

	handle   *device.Handle
	pipeline *recorder.Pipeline
	gesture  *gesture.Classifier

	mu        sync.Mutex
	session   domain.CaptureSession
	acqSeq    uint64
	cancelAcq context.CancelFunc
	listeners []Listener
}

func New(opts Opts) *Controller {
	cfg := opts.Config
	if !cfg.Facing.Valid() {
		cfg.Facing = domain.FacingUser
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = DefaultFinalizeTimeout
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	c := &Controller{
		cfg:    cfg,
		logger: log,
		admit:  opts.Admit,
		handle: device.NewHandle(opts.Driver, log),
		pipeline: recorder.New(recorder.Opts{
			Config: cfg.Recorder,
			Clock:  clock,
			Logger: log,
		}),
		session: domain.CaptureSession{
			Facing: cfg.Facing,
			Flash:  domain.FlashOff,
			Zoom:   1,
			Status: domain.StatusClosed,
		},
	}
	c.gesture = gesture.New(gesture.Opts{
		Config:  cfg.Gesture,
		Clock:   clock,
		OnLimit: c.onLimit,
	})
	return c
}

// OnCaptureComplete registers a listener for finished captures.
func (c *Controller) OnCaptureComplete(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Open acquires the camera for the current facing. A permission problem and
// any other failure leave the session in StatusError with distinct kinds.
func (c *Controller) Open(ctx context.Context) error {
	return c.acquire(ctx)
}

// Close abandons any gesture in progress, discards partial video and frees
// the device before returning.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.cancelAcq != nil {
		c.cancelAcq()
		c.cancelAcq = nil
	}
	c.acqSeq++
	c.session.Status = domain.StatusClosed
	c.session.ErrorKind = ""
	c.session.Capabilities = domain.Capabilities{}
	c.mu.Unlock()

	c.gesture.Cancel()
	c.gesture.Reset()
	c.pipeline.Discard()
	c.handle.Release()
}

// Retry re-runs acquisition after an error, e.g. once the user granted access.
func (c *Controller) Retry(ctx context.Context) error {
	c.gesture.Cancel()
	c.pipeline.Discard()
	c.handle.Release()
	return c.acquire(ctx)
}

// ToggleFacing switches cameras with a full release and re-acquisition.
func (c *Controller) ToggleFacing(ctx context.Context) error {
	c.gesture.Cancel()
	c.gesture.Reset()
	c.pipeline.Discard()

	c.mu.Lock()
	c.session.Facing = c.session.Facing.Toggle()
	c.mu.Unlock()

	return c.acquire(ctx)
}

// ToggleFlash flips the flash state. The torch is driven only on an
// environment camera that has one; otherwise the state is for the UI alone.
func (c *Controller) ToggleFlash() domain.Flash {
	c.mu.Lock()
	if c.session.Flash == domain.FlashOn {
		c.session.Flash = domain.FlashOff
	} else {
		c.session.Flash = domain.FlashOn
	}
	flash := c.session.Flash
	c.mu.Unlock()

	c.applyTorch()
	return flash
}

// SetZoom applies a zoom level within the track's range. It reports false
// when the camera cannot zoom.
func (c *Controller) SetZoom(level float64) bool {
	caps := c.handle.Capabilities()
	if caps.Zoom == nil {
		return false
	}
	level = caps.Zoom.Clamp(level)
	if !c.handle.ApplyConstraint(device.Constraints{Zoom: &level}) {
		return false
	}

	c.mu.Lock()
	c.session.Zoom = level
	c.mu.Unlock()
	return true
}

// Press starts a gesture and, if the device allows, video recording. A
// recording that fails to start is not an error: a tap can still take a photo.
func (c *Controller) Press(ctx context.Context) error {
	if c.admit != nil {
		if err := c.admit(); err != nil {
			return err
		}
	}
	if err := c.gesture.Press(); err != nil {
		return err
	}

	if err := c.pipeline.StartVideo(c.handle.Stream()); err != nil {
		c.logger.Warn("Recording did not start", "error", err)
		return nil
	}

	c.mu.Lock()
	if c.session.Status == domain.StatusLive {
		c.session.Status = domain.StatusRecording
	}
	c.mu.Unlock()
	return nil
}

// Release ends the gesture and finishes the capture it classifies as.
func (c *Controller) Release(ctx context.Context) error {
	out, ok := c.gesture.Release()
	if !ok {
		return nil
	}
	return c.complete(ctx, out)
}

func (c *Controller) Session() domain.CaptureSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Progress is the recording progress in [0,1].
func (c *Controller) Progress() float64 {
	return c.gesture.Progress()
}

func (c *Controller) onLimit(out gesture.Outcome) {
	if err := c.complete(context.Background(), out); err != nil {
		c.logger.Error("Failed to finish capture at recording limit", "error", err)
	}
}

func (c *Controller) complete(ctx context.Context, out gesture.Outcome) error {
	var (
		file domain.MediaFile
		err  error
	)

	switch out.Intent {
	case domain.IntentPhoto:
		c.pipeline.Discard()
		file, err = c.pipeline.Snapshot(c.handle.Stream(), c.handle.Facing())
	case domain.IntentVideo:
		fctx, cancel := context.WithTimeout(ctx, c.cfg.FinalizeTimeout)
		file, err = c.pipeline.StopVideo(fctx)
		cancel()
		if stderrors.Is(err, recorder.ErrNotRecording) {
			err = errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "recording never started")
		}
	}

	c.mu.Lock()
	if c.session.Status == domain.StatusRecording {
		c.session.Status = domain.StatusLive
	}
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	if err != nil {
		c.gesture.Reset()
		if errors.IsEmptyCapture(err) {
			c.logger.Debug("Dropping empty capture", "intent", out.Intent)
			return nil
		}
		c.logger.Warn("Capture failed", "intent", out.Intent, "error", err)
		return err
	}

	c.logger.Info("Capture complete", "kind", file.Kind, "bytes", file.Size(), "held", out.Elapsed, "auto_stopped", out.AutoStopped)
	for _, l := range listeners {
		l(file, file.Kind)
	}
	c.gesture.Reset()
	return nil
}

func (c *Controller) acquire(ctx context.Context) error {
	c.mu.Lock()
	if c.cancelAcq != nil {
		c.cancelAcq()
	}
	actx, cancel := context.WithCancel(ctx)
	c.cancelAcq = cancel
	c.acqSeq++
	seq := c.acqSeq
	facing := c.session.Facing
	c.session.Status = domain.StatusInitializing
	c.session.ErrorKind = ""
	c.session.Capabilities = domain.Capabilities{}
	c.mu.Unlock()

	caps, err := c.handle.Acquire(actx, facing, device.Constraints{Audio: true})

	c.mu.Lock()
	if seq != c.acqSeq || stderrors.Is(err, device.ErrSuperseded) {
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.cancelAcq = nil
	cancel()

	if err != nil {
		c.session.Status = domain.StatusError
		c.session.ErrorKind = errors.Kind(err)
		c.mu.Unlock()
		c.logger.Error("Failed to open camera", "facing", facing, "kind", errors.Kind(err), "error", err)
		return err
	}

	c.session.Capabilities = caps
	c.session.Status = domain.StatusLive
	c.session.Zoom = 1
	if caps.Zoom != nil {
		c.session.Zoom = caps.Zoom.Clamp(1)
	}
	c.mu.Unlock()

	c.applyTorch()
	return nil
}

func (c *Controller) applyTorch() {
	c.mu.Lock()
	on := c.session.Flash == domain.FlashOn
	usable := c.session.Facing == domain.FacingEnvironment && c.session.Capabilities.HasTorch
	c.mu.Unlock()

	if !usable {
		return
	}
	c.handle.ApplyConstraint(device.Constraints{Torch: &on})
}
