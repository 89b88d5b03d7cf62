package gesture

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/pkg/errors"
)

var ErrAlreadyPressed = errors.Wrap(errors.ErrConflict, "shutter already pressed")

type State int

const (
	StateIdle State = iota
	StatePressed
)

// Outcome is the result of one press-and-release. AutoStopped is set when
// the hold reached the recording ceiling before release.
type Outcome struct {
	Intent      domain.Intent
	Elapsed     time.Duration
	AutoStopped bool
}

type Opts struct {
	Config     Config
	Clock      clockwork.Clock
	OnProgress func(progress float64)
	OnLimit    func(Outcome)
}

// Classifier runs the Idle → Pressed → {Tapped, HeldToLimit} machine. While
// pressed it ticks progress; when the ceiling is hit it finishes on its own
// and reports through OnLimit.
type Classifier struct {
	cfg        Config
	clock      clockwork.Clock
	onProgress func(float64)
	onLimit    func(Outcome)

	mu       sync.Mutex
	state    State
	start    time.Time
	progress float64
	cancel   chan struct{}
	ticker   clockwork.Ticker
}

func New(opts Opts) *Classifier {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Classifier{
		cfg:        opts.Config.withDefaults(),
		clock:      clock,
		onProgress: opts.OnProgress,
		onLimit:    opts.OnLimit,
	}
}

func (c *Classifier) Config() Config {
	return c.cfg
}

// Press starts a gesture and its progress tick.
func (c *Classifier) Press() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePressed {
		return ErrAlreadyPressed
	}

	c.state = StatePressed
	c.start = c.clock.Now()
	c.progress = 0
	c.cancel = make(chan struct{})
	c.ticker = c.clock.NewTicker(c.cfg.Tick)

	go c.tick(c.ticker, c.cancel, c.start)
	return nil
}

// Release finishes the gesture. ok is false when nothing was pressed, which
// includes a hold that already auto-stopped.
func (c *Classifier) Release() (Outcome, bool) {
	return c.finish(false)
}

// Cancel abandons a pressed gesture without producing an outcome.
func (c *Classifier) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePressed {
		c.stopTickLocked()
		c.state = StateIdle
	}
}

// Reset zeroes the progress once the capture has been handed off.
func (c *Classifier) Reset() {
	c.mu.Lock()
	c.progress = 0
	c.mu.Unlock()
	c.notify(0)
}

func (c *Classifier) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

func (c *Classifier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Classifier) finish(auto bool) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePressed {
		return Outcome{}, false
	}

	elapsed := c.clock.Since(c.start)
	if auto && elapsed < c.cfg.MaxDuration {
		return Outcome{}, false
	}

	c.stopTickLocked()
	c.state = StateIdle
	c.progress = c.cfg.Progress(elapsed)

	return Outcome{
		Intent:      c.cfg.Classify(elapsed),
		Elapsed:     elapsed,
		AutoStopped: auto,
	}, true
}

func (c *Classifier) stopTickLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.cancel != nil {
		close(c.cancel)
		c.cancel = nil
	}
}

func (c *Classifier) tick(ticker clockwork.Ticker, cancel chan struct{}, start time.Time) {
	for {
		select {
		case <-cancel:
			return
		case <-ticker.Chan():
			elapsed := c.clock.Since(start)

			c.mu.Lock()
			if c.cancel != cancel {
				c.mu.Unlock()
				return
			}
			c.progress = c.cfg.Progress(elapsed)
			p := c.progress
			c.mu.Unlock()

			c.notify(p)

			if elapsed >= c.cfg.MaxDuration {
				if out, ok := c.finish(true); ok && c.onLimit != nil {
					c.onLimit(out)
				}
				return
			}
		}
	}
}

func (c *Classifier) notify(p float64) {
	if c.onProgress != nil {
		c.onProgress(p)
	}
}
