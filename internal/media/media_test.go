package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/juggle/internal/config"
	"github.com/sudo-init-do/juggle/internal/validate"
)

type memoryBlob struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryBlob() *memoryBlob {
	return &memoryBlob{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *memoryBlob) Upload(_ context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return io.ErrShortWrite
	}
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memoryBlob) URL(key string) string {
	return "https://cdn.example.com/" + key
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompressProducesJPEG(t *testing.T) {
	out, err := Compress(samplePNG(t))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimetype.Detect(out).String())

	again, err := Compress(out)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimetype.Detect(again).String())
}

func TestCompressRejectsNonImages(t *testing.T) {
	_, err := Compress([]byte("just some text, not an image"))
	verr, ok := validate.As(err)
	require.True(t, ok)
	assert.True(t, verr.Has("image"))
}

// pngHeader returns a PNG that declares w x h truecolor pixels but carries
// no image data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(typ string, data []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(data)))
		buf.Write(n[:])
		body := append([]byte(typ), data...)
		buf.Write(body)
		binary.BigEndian.PutUint32(n[:], crc32.ChecksumIEEE(body))
		buf.Write(n[:])
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

func TestCompressRejectsOversizedDimensions(t *testing.T) {
	data := pngHeader(30000, 30000)
	require.Less(t, len(data), 100)

	_, err := Compress(data)
	verr, ok := validate.As(err)
	require.True(t, ok)
	require.True(t, verr.Has("image"))
	assert.Contains(t, verr.Fields[0].Reason, "30000x30000")

	svc := NewService(newMemoryBlob(), 1<<20)
	_, err = svc.UploadProfileImage(context.Background(), bytes.NewReader(data))
	_, ok = validate.As(err)
	assert.True(t, ok)
}

func TestUploadProfileImage(t *testing.T) {
	blob := newMemoryBlob()
	svc := NewService(blob, 1<<20)
	svc.newID = func() string { return "img1" }

	url, err := svc.UploadProfileImage(context.Background(), bytes.NewReader(samplePNG(t)))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/profile_images/img1", url)
	require.Contains(t, blob.objects, "profile_images/img1")
	assert.Equal(t, "image/jpeg", blob.types["profile_images/img1"])
}

func TestUploadProfileImageLimits(t *testing.T) {
	svc := NewService(newMemoryBlob(), 16)

	_, err := svc.UploadProfileImage(context.Background(), strings.NewReader(""))
	_, ok := validate.As(err)
	assert.True(t, ok)

	_, err = svc.UploadProfileImage(context.Background(), bytes.NewReader(samplePNG(t)))
	verr, ok := validate.As(err)
	require.True(t, ok)
	assert.Contains(t, verr.Error(), "exceeds max size")
}

func TestS3StorageDisabledWithoutBucket(t *testing.T) {
	cfg, err := config.FromMap(map[string]string{"STORE_BACKEND": "memory"})
	require.NoError(t, err)

	storage, err := NewS3Storage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, storage.Health(context.Background()))

	svc := NewService(storage, 1<<20)
	_, err = svc.UploadProfileImage(context.Background(), bytes.NewReader(samplePNG(t)))
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestS3StorageURL(t *testing.T) {
	s := &S3Storage{bucket: "juggle", region: "eu-west-1"}
	assert.Equal(t, "https://juggle.s3.eu-west-1.amazonaws.com/profile_images/a", s.URL("profile_images/a"))

	s.baseURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/profile_images/a", s.URL("profile_images/a"))
}
