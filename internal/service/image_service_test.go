package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tutorx/internal/config"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageService_UploadFitsAndEncodesWebP(t *testing.T) {
	dir := t.TempDir()
	svc := NewImageService(&config.Config{UploadDir: dir, PublicBaseURL: "https://api.example.com/", ImageMaxUploadSizeMB: 5})

	tests := []struct {
		name       string
		kind       ImageKind
		w, h       int
		wantW      int
		wantH      int
		wantFolder string
	}{
		{name: "avatar is fitted to 512", kind: ImageKindAvatar, w: 1024, h: 768, wantW: 512, wantH: 384, wantFolder: "avatars"},
		{name: "thumbnail is fitted to 1280", kind: ImageKindThumbnail, w: 1600, h: 1600, wantW: 1280, wantH: 1280, wantFolder: "thumbnails"},
		{name: "small images keep their size", kind: ImageKindThumbnail, w: 300, h: 200, wantW: 300, wantH: 200, wantFolder: "thumbnails"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, err := svc.Upload(context.Background(), UploadImageInput{UserID: 3, Kind: tt.kind, Content: solidPNG(t, tt.w, tt.h)})
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, stored.Width)
			assert.Equal(t, tt.wantH, stored.Height)
			assert.True(t, strings.HasPrefix(stored.URL, "https://api.example.com/uploads/"+tt.wantFolder+"/3-"), stored.URL)
			assert.True(t, strings.HasSuffix(stored.URL, ".webp"))

			rel := strings.TrimPrefix(stored.URL, "https://api.example.com/uploads/")
			raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
			require.NoError(t, err)
			cfg, err := webp.DecodeConfig(bytes.NewReader(raw))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, cfg.Width)
		})
	}
}

func TestImageService_UploadRejectsBadInput(t *testing.T) {
	svc := NewImageService(&config.Config{UploadDir: t.TempDir(), ImageMaxUploadSizeMB: 1})
	ctx := context.Background()

	tests := []struct {
		name string
		in   UploadImageInput
	}{
		{name: "empty", in: UploadImageInput{UserID: 1, Kind: ImageKindAvatar}},
		{name: "unknown kind", in: UploadImageInput{UserID: 1, Kind: "banner", Content: []byte("x")}},
		{name: "not an image", in: UploadImageInput{UserID: 1, Kind: ImageKindAvatar, Content: []byte("plain text body")}},
		{name: "too large", in: UploadImageInput{UserID: 1, Kind: ImageKindAvatar, Content: make([]byte, 2*1024*1024)}},
		{name: "anonymous", in: UploadImageInput{Kind: ImageKindAvatar, Content: []byte("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.in)
			assertValidationError(t, err)
		})
	}
}
