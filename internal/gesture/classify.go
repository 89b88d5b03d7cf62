package gesture

import (
	"time"

	"github.com/orgball2608/storycam/internal/domain"
)

const (
	DefaultMinHold     = 300 * time.Millisecond
	DefaultMaxDuration = 15 * time.Second
	DefaultTick        = 16 * time.Millisecond
)

type Config struct {
	MinHold     time.Duration
	MaxDuration time.Duration
	Tick        time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinHold:     DefaultMinHold,
		MaxDuration: DefaultMaxDuration,
		Tick:        DefaultTick,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinHold <= 0 {
		c.MinHold = d.MinHold
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = d.MaxDuration
	}
	if c.Tick <= 0 {
		c.Tick = d.Tick
	}
	return c
}

// Classify decides the intent of a gesture from its hold time alone.
// The threshold belongs to the video side.
func (c Config) Classify(elapsed time.Duration) domain.Intent {
	if elapsed < c.withDefaults().MinHold {
		return domain.IntentPhoto
	}
	return domain.IntentVideo
}

// Progress maps elapsed hold time onto [0,1] of the recording ceiling.
func (c Config) Progress(elapsed time.Duration) float64 {
	ceiling := c.withDefaults().MaxDuration
	p := float64(elapsed) / float64(ceiling)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// Classify uses the default thresholds.
func Classify(elapsed time.Duration) domain.Intent {
	return DefaultConfig().Classify(elapsed)
}
