package recorder

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/storycam/internal/device"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/pkg/errors"
	"github.com/orgball2608/storycam/pkg/formatter"
	"github.com/orgball2608/storycam/pkg/logger"
)

const (
	DefaultSegment       = time.Second
	DefaultBitsPerSecond = 2_500_000
	DefaultJPEGQuality   = 92
)

// DefaultMIMEPreference tries the container most players accept first and
// falls back to the one every encoder can produce.
var DefaultMIMEPreference = []string{
	"video/mp4",
	"video/webm;codecs=vp9",
	"video/webm",
}

var ErrNotRecording = errors.Wrap(errors.ErrConflict, "not recording")

type Config struct {
	Segment        time.Duration
	BitsPerSecond  int
	MIMEPreference []string
	JPEGQuality    int
}

func (c Config) withDefaults() Config {
	if c.Segment <= 0 {
		c.Segment = DefaultSegment
	}
	if c.BitsPerSecond <= 0 {
		c.BitsPerSecond = DefaultBitsPerSecond
	}
	if len(c.MIMEPreference) == 0 {
		c.MIMEPreference = DefaultMIMEPreference
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = DefaultJPEGQuality
	}
	return c
}

type Opts struct {
	Config Config
	Clock  clockwork.Clock
	Logger logger.Logger
}

// Pipeline records at most one video at a time and grabs still frames.
type Pipeline struct {
	cfg    Config
	clock  clockwork.Clock
	logger logger.Logger

	mu  sync.Mutex
	rec *recording
}

type recording struct {
	enc      device.Encoder
	mimeType string
	started  time.Time

	mu       sync.Mutex
	segments [][]byte
	done     chan struct{}
}

func New(opts Opts) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		cfg:    opts.Config.withDefaults(),
		clock:  clock,
		logger: log,
	}
}

// SelectMIME returns the first preferred container the stream can encode.
func SelectMIME(stream device.Stream, preference []string) (string, error) {
	for _, m := range preference {
		if stream.SupportsMIME(m) {
			return m, nil
		}
	}
	return "", errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "no supported video container")
}

// StartVideo begins encoding the stream into one-segment-per-interval chunks.
func (p *Pipeline) StartVideo(stream device.Stream) error {
	if stream == nil || !stream.Live() {
		return errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "no live stream")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rec != nil {
		return errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "recording already in progress")
	}

	mimeType, err := SelectMIME(stream, p.cfg.MIMEPreference)
	if err != nil {
		return err
	}

	enc, err := stream.NewEncoder(device.EncoderOptions{
		MIMEType:      mimeType,
		BitsPerSecond: p.cfg.BitsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("%w: create encoder: %w", errors.ErrDeviceUnavailable, err)
	}

	chunks, err := enc.Start(p.cfg.Segment)
	if err != nil {
		return fmt.Errorf("%w: start encoder: %w", errors.ErrDeviceUnavailable, err)
	}

	rec := &recording{
		enc:      enc,
		mimeType: mimeType,
		started:  p.clock.Now(),
		done:     make(chan struct{}),
	}
	go rec.collect(chunks)

	p.rec = rec
	p.logger.Debug("Recording started", "mime", mimeType, "bitrate", p.cfg.BitsPerSecond)
	return nil
}

// StopVideo flushes the encoder and joins all segments into one file.
// A recording that produced no bytes yields errors.ErrEmptyCapture.
func (p *Pipeline) StopVideo(ctx context.Context) (domain.MediaFile, error) {
	rec := p.take()
	if rec == nil {
		return domain.MediaFile{}, ErrNotRecording
	}

	if err := rec.enc.Stop(); err != nil {
		rec.enc.Abort()
		return domain.MediaFile{}, fmt.Errorf("%w: stop encoder: %w", errors.ErrDeviceUnavailable, err)
	}

	select {
	case <-rec.done:
	case <-ctx.Done():
		rec.enc.Abort()
		return domain.MediaFile{}, fmt.Errorf("%w: finalize recording: %w", errors.ErrDeviceUnavailable, ctx.Err())
	}

	rec.mu.Lock()
	data := bytes.Join(rec.segments, nil)
	segments := len(rec.segments)
	rec.mu.Unlock()

	if len(data) == 0 {
		return domain.MediaFile{}, errors.ErrEmptyCapture
	}

	p.logger.Debug("Recording finalized", "segments", segments, "size", formatter.FormatBytes(len(data)), "duration", p.clock.Since(rec.started))

	return domain.MediaFile{
		Kind:      domain.MediaVideo,
		MIMEType:  rec.mimeType,
		Data:      data,
		CreatedAt: p.clock.Now(),
	}, nil
}

// Discard aborts the current recording and drops its segments.
func (p *Pipeline) Discard() {
	rec := p.take()
	if rec == nil {
		return
	}
	rec.enc.Abort()
	p.logger.Debug("Recording discarded")
}

func (p *Pipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec != nil
}

func (p *Pipeline) take() *recording {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := p.rec
	p.rec = nil
	return rec
}

func (r *recording) collect(chunks <-chan []byte) {
	defer close(r.done)
	for chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		r.mu.Lock()
		r.segments = append(r.segments, chunk)
		r.mu.Unlock()
	}
}
