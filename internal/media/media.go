package media

import (
	"context"
	stderrors "errors"

	"github.com/orgball2608/storycam/internal/domain"
)

var ErrNotFound = stderrors.New("media not found")

//go:generate go run go.uber.org/mock/mockgen -source=media.go -destination=mocks/mock.go

// Store persists finished captures outside the process and hands back an
// opaque location for them.
type Store interface {
	Put(ctx context.Context, file domain.MediaFile) (string, error)
	Delete(ctx context.Context, location string) error
	Resolve(location string) (string, error)
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "video/mp4":
		return ".mp4"
	case "video/webm", "video/webm;codecs=vp9":
		return ".webm"
	default:
		return ""
	}
}
