package domain

import "time"

type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// Toggle returns the opposite camera.
func (f Facing) Toggle() Facing {
	if f == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

func (f Facing) Valid() bool {
	return f == FacingUser || f == FacingEnvironment
}

type Flash string

const (
	FlashOff Flash = "off"
	FlashOn  Flash = "on"
)

type Status string

const (
	StatusClosed       Status = "closed"
	StatusInitializing Status = "initializing"
	StatusLive         Status = "live"
	StatusRecording    Status = "recording"
	StatusError        Status = "error"
)

// Range describes a numeric hardware setting such as zoom or exposure.
type Range struct {
	Min  float64
	Max  float64
	Step float64
}

// Clamp limits v to the range.
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Capabilities is discovered once per device acquisition. A nil range means
// the setting is not adjustable on the active track.
type Capabilities struct {
	Zoom     *Range
	Exposure *Range
	HasTorch bool
	HasFocus bool
}

type CaptureSession struct {
	Facing       Facing
	Flash        Flash
	Zoom         float64
	Capabilities Capabilities
	Status       Status
	ErrorKind    string
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Intent is the classified outcome of one shutter gesture.
type Intent int

const (
	IntentPhoto Intent = iota
	IntentVideo
)

func (i Intent) Kind() MediaKind {
	if i == IntentVideo {
		return MediaVideo
	}
	return MediaImage
}

func (i Intent) String() string {
	return string(i.Kind())
}

// MediaFile is a finished capture held in memory until it is handed to
// storage.
type MediaFile struct {
	Kind      MediaKind
	MIMEType  string
	Data      []byte
	CreatedAt time.Time
}

func (f MediaFile) Size() int {
	return len(f.Data)
}
