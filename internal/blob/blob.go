// Package blob is the media storage boundary. The engine itself only
// consumes the (url, name, size) triple a backend returns; transcoding
// and delivery belong to the external store.
package blob

import (
	"context"
	"fmt"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/models"
)

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (url string, err error)
	PresignURL(ctx context.Context, key string, ttlSeconds int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// Upload size caps per message type, in bytes.
const (
	maxImageSize = 5 << 20
	maxAudioSize = 10 << 20
	maxVideoSize = 50 << 20
	maxFileSize  = 20 << 20
)

// CheckSize enforces the per-type upload cap before a backend is hit.
func CheckSize(msgType string, size int64) error {
	var limit int64
	switch msgType {
	case models.TypeImage:
		limit = maxImageSize
	case models.TypeAudio:
		limit = maxAudioSize
	case models.TypeVideo:
		limit = maxVideoSize
	case models.TypeFile:
		limit = maxFileSize
	default:
		return fmt.Errorf("type %q does not carry media: %w", msgType, apperr.ErrValidation)
	}
	if size > limit {
		return fmt.Errorf("%s exceeds %d byte limit: %w", msgType, limit, apperr.ErrValidation)
	}
	return nil
}
