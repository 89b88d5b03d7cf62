package device

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/pkg/errors"
	"github.com/orgball2608/storycam/pkg/logger"
)

// ErrSuperseded is returned by Acquire when a newer Acquire or a Release was
// issued before this one finished. The caller must not apply anything.
var ErrSuperseded = stderrors.New("acquisition superseded")

// Handle owns the single live stream. Acquisitions are serialized so two
// camera handles are never held at once, and every request bumps a
// generation so only the latest requested facing is ever applied.
type Handle struct {
	driver Driver
	logger logger.Logger

	acquireMu sync.Mutex

	mu     sync.Mutex
	gen    uint64
	wanted domain.Facing
	stream Stream
	facing domain.Facing
	caps   domain.Capabilities
}

func NewHandle(driver Driver, log logger.Logger) *Handle {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handle{
		driver: driver,
		logger: log,
	}
}

// Acquire releases the current stream, opens a new one for facing and
// discovers its capabilities.
func (h *Handle) Acquire(ctx context.Context, facing domain.Facing, c Constraints) (domain.Capabilities, error) {
	if !facing.Valid() {
		return domain.Capabilities{}, fmt.Errorf("%w: unknown facing %q", errors.ErrInvalidInput, facing)
	}

	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.wanted = facing
	h.mu.Unlock()

	h.acquireMu.Lock()
	defer h.acquireMu.Unlock()

	h.mu.Lock()
	if gen != h.gen {
		h.mu.Unlock()
		return domain.Capabilities{}, ErrSuperseded
	}
	prev := h.stream
	h.stream = nil
	h.caps = domain.Capabilities{}
	h.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}

	stream, err := h.driver.Open(ctx, facing, c)

	h.mu.Lock()
	defer h.mu.Unlock()

	if gen != h.gen {
		if stream != nil {
			stream.Stop()
		}
		h.logger.Debug("Discarding stale device acquisition", "facing", facing, "wanted", h.wanted)
		return domain.Capabilities{}, ErrSuperseded
	}
	if err != nil {
		return domain.Capabilities{}, classify(err)
	}

	h.stream = stream
	h.facing = facing
	h.caps = stream.Capabilities()
	h.logger.Info("Device acquired", "facing", facing, "torch", h.caps.HasTorch, "zoom", h.caps.Zoom != nil)

	return h.caps, nil
}

// Release stops the live stream and supersedes any pending acquisition.
// Calling it more than once is harmless.
func (h *Handle) Release() {
	h.mu.Lock()
	h.gen++
	stream := h.stream
	h.stream = nil
	h.caps = domain.Capabilities{}
	h.mu.Unlock()

	if stream != nil {
		stream.Stop()
		h.logger.Info("Device released")
	}
}

// ApplyConstraint applies the settings the active track supports and silently
// drops the rest. It reports whether anything was applied.
func (h *Handle) ApplyConstraint(c Constraints) bool {
	h.mu.Lock()
	stream, caps := h.stream, h.caps
	h.mu.Unlock()

	if stream == nil || !stream.Live() {
		h.logger.Debug("Skipping constraint, no live track")
		return false
	}

	supported := supportedSubset(caps, c)
	if supported.Empty() {
		h.logger.Debug("Skipping constraint, not supported by track")
		return false
	}

	if err := stream.Apply(supported); err != nil {
		h.logger.Warn("Failed to apply constraint", "error", err)
		return false
	}
	return true
}

func (h *Handle) Stream() Stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stream
}

// Wanted is the facing of the most recent acquisition request.
func (h *Handle) Wanted() domain.Facing {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.wanted
}

func (h *Handle) Facing() domain.Facing {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.facing
}

func (h *Handle) Capabilities() domain.Capabilities {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.caps
}

func (h *Handle) Live() bool {
	s := h.Stream()
	return s != nil && s.Live()
}

func supportedSubset(caps domain.Capabilities, c Constraints) Constraints {
	var out Constraints
	if c.Torch != nil && caps.HasTorch {
		out.Torch = c.Torch
	}
	if c.Zoom != nil && caps.Zoom != nil {
		z := caps.Zoom.Clamp(*c.Zoom)
		out.Zoom = &z
	}
	if c.Exposure != nil && caps.Exposure != nil {
		e := caps.Exposure.Clamp(*c.Exposure)
		out.Exposure = &e
	}
	return out
}

func classify(err error) error {
	if errors.IsPermissionDenied(err) || errors.IsDeviceUnavailable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", errors.ErrDeviceUnavailable, err)
}
