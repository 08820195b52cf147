// Package media stores profile images.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/validate"
)

const (
	// JPEGQuality is the quality profile images are re-encoded at.
	JPEGQuality = 20
	// MaxPixels caps width*height before any pixel data is decoded.
	MaxPixels = 25_000_000
)

var allowedMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Blob is an object store that serves what it stores at a public URL.
type Blob interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	URL(key string) string
}

// Service validates, compresses and uploads profile images.
type Service struct {
	blob     Blob
	maxBytes int64
	newID    func() string
}

func NewService(blob Blob, maxBytes int64) *Service {
	return &Service{blob: blob, maxBytes: maxBytes, newID: models.NewID}
}

func rejectImage(reason string) error {
	var v validate.Collector
	v.Add("image", reason)
	return v.Err()
}

// Compress re-encodes a jpeg, png or gif image as a low quality JPEG.
func Compress(data []byte) ([]byte, error) {
	mimeType := mimetype.Detect(data).String()
	if !allowedMIMEs[mimeType] {
		return nil, rejectImage(fmt.Sprintf("unsupported mime type %s", mimeType))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, rejectImage("could not decode image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, rejectImage(fmt.Sprintf("dimensions %dx%d exceed %d pixels", cfg.Width, cfg.Height, MaxPixels))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, rejectImage("could not decode image")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// UploadProfileImage stores the image read from r at profile_images/{id}
// and returns its URL.
func (s *Service) UploadProfileImage(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", rejectImage("is required")
	}
	if int64(len(data)) > s.maxBytes {
		return "", rejectImage(fmt.Sprintf("exceeds max size of %d bytes", s.maxBytes))
	}

	compressed, err := Compress(data)
	if err != nil {
		return "", err
	}

	key := models.ProfileImagesPrefix + "/" + s.newID()
	if err := s.blob.Upload(ctx, key, bytes.NewReader(compressed), int64(len(compressed)), "image/jpeg"); err != nil {
		return "", fmt.Errorf("upload profile image: %w", err)
	}
	return s.blob.URL(key), nil
}
