package gesture

import (
	"testing"
	"time"

	"github.com/orgball2608/storycam/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    domain.Intent
	}{
		{"instant tap", 0, domain.IntentPhoto},
		{"short tap", 120 * time.Millisecond, domain.IntentPhoto},
		{"just under threshold", 299 * time.Millisecond, domain.IntentPhoto},
		{"at threshold", 300 * time.Millisecond, domain.IntentVideo},
		{"hold", 500 * time.Millisecond, domain.IntentVideo},
		{"past ceiling", 20 * time.Second, domain.IntentVideo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.elapsed); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestClassifyCustomThreshold(t *testing.T) {
	cfg := Config{MinHold: time.Second}
	if got := cfg.Classify(999 * time.Millisecond); got != domain.IntentPhoto {
		t.Errorf("got %v, want photo", got)
	}
	if got := cfg.Classify(time.Second); got != domain.IntentVideo {
		t.Errorf("got %v, want video", got)
	}
}

func TestProgress(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{-time.Second, 0},
		{0, 0},
		{7500 * time.Millisecond, 0.5},
		{15 * time.Second, 1},
		{time.Minute, 1},
	}

	for _, tt := range tests {
		if got := cfg.Progress(tt.elapsed); got != tt.want {
			t.Errorf("Progress(%v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	got := Config{}.withDefaults()
	if got != DefaultConfig() {
		t.Errorf("withDefaults() = %+v, want %+v", got, DefaultConfig())
	}
}
