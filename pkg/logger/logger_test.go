package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWritesToConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(Opts{Env: "development", Output: &buf})

	log.Info("Story item appended", "owner", "alice")
	log.Debug("Recording started", "mime", "video/mp4")

	out := buf.String()
	for _, want := range []string{"Story item appended", "alice", "Recording started"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestProductionDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Opts{Env: "production", Output: &buf})

	log.Debug("Recording started")
	if buf.Len() != 0 {
		t.Errorf("debug record written in production: %q", buf.String())
	}

	log.Printf("PROVIDE\t%s", "*story.Store")
	if !strings.Contains(buf.String(), "*story.Store") {
		t.Errorf("Printf output missing: %q", buf.String())
	}
}
