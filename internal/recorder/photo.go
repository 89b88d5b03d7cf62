package recorder

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/orgball2608/storycam/internal/device"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/pkg/errors"
)

const photoMIME = "image/jpeg"

// Snapshot grabs the current frame as a JPEG. Frames from the user-facing
// camera are mirrored so the photo matches the preview.
func (p *Pipeline) Snapshot(stream device.Stream, facing domain.Facing) (domain.MediaFile, error) {
	if stream == nil || !stream.Live() {
		return domain.MediaFile{}, errors.WrapWithCode(errors.ErrDeviceUnavailable, errors.CodeDeviceUnavailable, "no live stream")
	}

	frame, err := stream.Frame()
	if err != nil {
		return domain.MediaFile{}, fmt.Errorf("%w: grab frame: %w", errors.ErrDeviceUnavailable, err)
	}

	if facing == domain.FacingUser {
		frame = Mirror(frame)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: p.cfg.JPEGQuality}); err != nil {
		return domain.MediaFile{}, fmt.Errorf("%w: encode frame: %w", errors.ErrDeviceUnavailable, err)
	}
	if buf.Len() == 0 {
		return domain.MediaFile{}, errors.ErrEmptyCapture
	}

	return domain.MediaFile{
		Kind:      domain.MediaImage,
		MIMEType:  photoMIME,
		Data:      buf.Bytes(),
		CreatedAt: p.clock.Now(),
	}, nil
}

// Mirror flips img horizontally.
func Mirror(img image.Image) *image.RGBA {
	b := img.Bounds()
	src := image.NewRGBA(b)
	draw.Draw(src, b, img, b.Min, draw.Src)

	dst := image.NewRGBA(b)
	w := b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := 0; x < w; x++ {
			dst.SetRGBA(b.Min.X+w-1-x, y, src.RGBAAt(b.Min.X+x, y))
		}
	}
	return dst
}
