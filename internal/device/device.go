package device

import (
	"context"
	"image"
	"time"

	"github.com/orgball2608/storycam/internal/domain"
)

// Constraints is a partial set of track settings. Nil fields are left as they are.
type Constraints struct {
	Zoom     *float64
	Torch    *bool
	Exposure *float64
	Audio    bool
}

// Empty reports whether no setting is requested.
func (c Constraints) Empty() bool {
	return c.Zoom == nil && c.Torch == nil && c.Exposure == nil
}

type EncoderOptions struct {
	MIMEType      string
	BitsPerSecond int
}

//go:generate go run go.uber.org/mock/mockgen -source=device.go -destination=mocks/mock.go

// Driver negotiates access to a physical camera and microphone.
//
// Open fails with an error wrapping errors.ErrPermissionDenied when the user
// declined access and errors.ErrDeviceUnavailable for anything else.
type Driver interface {
	Open(ctx context.Context, facing domain.Facing, c Constraints) (Stream, error)
}

// Stream is a live camera/microphone stream.
//
// Implementations must guarantee that Stop is idempotent and that Frame and
// Apply fail once the stream is stopped.
type Stream interface {
	Live() bool
	Capabilities() domain.Capabilities
	Apply(c Constraints) error
	Frame() (image.Image, error)
	SupportsMIME(mimeType string) bool
	NewEncoder(opts EncoderOptions) (Encoder, error)
	Stop()
}

// Encoder turns the stream into encoded chunks.
//
// Start emits one chunk per timeslice on the returned channel. Stop flushes the
// pending data as a last chunk and closes the channel; Abort closes it without
// flushing.
type Encoder interface {
	Start(timeslice time.Duration) (<-chan []byte, error)
	Stop() error
	Abort()
}
