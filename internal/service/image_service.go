package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"tutorx/internal/config"
	"tutorx/internal/models"
	"tutorx/internal/observability"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageUploadDir       = "./uploads"
	DefaultImageMaxUploadSizeMB = 10
	WebPQuality                 = 80
)

// ImageKind selects the bounding box and storage folder for an upload.
type ImageKind string

const (
	ImageKindAvatar    ImageKind = "avatar"
	ImageKindThumbnail ImageKind = "thumbnail"
)

var maxEdgeFor = map[ImageKind]int{
	ImageKindAvatar:    512,
	ImageKindThumbnail: 1280,
}

type UploadImageInput struct {
	UserID  uint
	Kind    ImageKind
	Content []byte
}

// StoredImage describes a normalized upload on disk.
type StoredImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int    `json:"bytes"`
}

// ImageService decodes uploads, fits them into the kind's bounding box and stores them as WebP.
type ImageService struct {
	uploadDir          string
	publicBaseURL      string
	maxUploadSizeBytes int64
}

func NewImageService(cfg *config.Config) *ImageService {
	uploadDir := DefaultImageUploadDir
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	publicBaseURL := ""

	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
		publicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	}

	return &ImageService{
		uploadDir:          uploadDir,
		publicBaseURL:      publicBaseURL,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// UploadDir is where normalized files are written; the server mounts it at /uploads.
func (s *ImageService) UploadDir() string {
	return s.uploadDir
}

func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (_ *StoredImage, err error) {
	_, span := observability.StartSpan(ctx, "image.upload",
		attribute.String("image.kind", string(in.Kind)),
		attribute.Int("image.bytes", len(in.Content)),
	)
	defer func() { observability.EndSpan(span, err) }()

	maxEdge, ok := maxEdgeFor[in.Kind]
	if !ok {
		return nil, models.NewValidationError("Invalid image kind")
	}
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	if !isAllowedImageMIME(http.DetectContentType(in.Content)) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	fitted := resizeToFit(decoded, maxEdge, maxEdge)
	encoded, err := encodeWebP(fitted, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("encode webp: %w", err))
	}

	rel := filepath.ToSlash(filepath.Join(string(in.Kind)+"s", fmt.Sprintf("%d-%s.webp", in.UserID, uuid.NewString())))
	if err := writeBytesToFile(filepath.Join(s.uploadDir, rel), encoded); err != nil {
		return nil, models.NewInternalError(fmt.Errorf("store image: %w", err))
	}

	b := fitted.Bounds()
	return &StoredImage{
		URL:    s.publicBaseURL + "/uploads/" + rel,
		Width:  b.Dx(),
		Height: b.Dy(),
		Bytes:  len(encoded),
	}, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
