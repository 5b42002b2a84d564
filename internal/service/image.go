package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/dn5s/lthread/internal/config"
	"github.com/dn5s/lthread/internal/domain"
	internal_errors "github.com/dn5s/lthread/internal/errors"
	"github.com/dn5s/lthread/internal/logger"
)

const (
	maxImageBytes     = 20 << 20 // 20MB
	maxImageDimension = 10000
	thumbnailMaxSize  = 250
)

// ImageStore is the image collaborator contract: validate and persist an
// upload, or release previously stored paths. Paths returned by Store are
// opaque validated strings; the core persists them as-is.
type ImageStore interface {
	Store(img *domain.PendingImage) (imagePath, thumbnailPath string, err error)
	Release(imagePath string) error
}

// Image stores originals and thumbnails on the local filesystem under a
// single root. Filenames are always generated, never taken from the upload,
// so stored paths cannot traverse outside the root.
type Image struct {
	rootPath     string
	thumbsSubdir string
}

var _ ImageStore = (*Image)(nil)

func NewImage(cfg *config.Storage) (*Image, error) {
	root := filepath.Clean(cfg.ImagesPath)
	if err := os.MkdirAll(filepath.Join(root, cfg.ThumbnailsSubdir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directories: %w", err)
	}
	return &Image{rootPath: root, thumbsSubdir: cfg.ThumbnailsSubdir}, nil
}

// Store validates the upload, writes the original and a downscaled thumbnail,
// and returns their paths relative to the image root.
func (s *Image) Store(img *domain.PendingImage) (string, string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", "", &internal_errors.ValidationError{Message: "image file is empty"}
	}
	if len(img.Data) > maxImageBytes {
		return "", "", &internal_errors.ValidationError{Message: "file size exceeds maximum of 20MB"}
	}

	// DecodeConfig reads only the header, so dimensions are checked before
	// any full decode allocation.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return "", "", &internal_errors.ValidationError{Message: "unsupported image format"}
	}
	switch format {
	case "jpeg", "png", "gif":
	default:
		return "", "", &internal_errors.ValidationError{Message: "unsupported image format"}
	}
	if cfg.Width > maxImageDimension || cfg.Height > maxImageDimension {
		return "", "", &internal_errors.ValidationError{Message: "image dimensions too large"}
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return "", "", &internal_errors.ValidationError{Message: "corrupted image data"}
	}

	filename := fmt.Sprintf("%d_%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], extensionFor(format))
	if err := os.WriteFile(filepath.Join(s.rootPath, filename), img.Data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write image: %w", err)
	}

	thumbFile := thumbnailName(filename)
	thumbnailPath := filepath.ToSlash(filepath.Join(s.thumbsSubdir, thumbFile))
	if err := s.writeThumbnail(decoded, format, thumbFile); err != nil {
		os.Remove(filepath.Join(s.rootPath, filename))
		return "", "", fmt.Errorf("failed to write thumbnail: %w", err)
	}

	return filename, thumbnailPath, nil
}

// Release deletes the original and its thumbnail. The path must be a bare
// generated filename; anything else is rejected before touching the
// filesystem.
func (s *Image) Release(imagePath string) error {
	if imagePath == "" {
		return nil
	}
	if imagePath != filepath.Base(imagePath) || strings.Contains(imagePath, "..") {
		return &internal_errors.ValidationError{Message: "invalid image path"}
	}

	if err := os.Remove(filepath.Join(s.rootPath, imagePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image %s: %w", imagePath, err)
	}
	if err := os.Remove(filepath.Join(s.rootPath, s.thumbsSubdir, thumbnailName(imagePath))); err != nil && !os.IsNotExist(err) {
		// Orphaned thumbnails are harmless; log and move on.
		logger.Log.Warn("failed to remove thumbnail", "path", imagePath, "error", err)
	}
	return nil
}

func (s *Image) writeThumbnail(src image.Image, format, thumbFile string) error {
	thumb := scaleDown(src, thumbnailMaxSize)

	var buf bytes.Buffer
	var err error
	if format == "png" {
		err = png.Encode(&buf, thumb)
	} else {
		err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.rootPath, s.thumbsSubdir, thumbFile), buf.Bytes(), 0644)
}

// scaleDown fits src into a maxSize square, preserving aspect ratio. Images
// already small enough are returned unchanged.
func scaleDown(src image.Image, maxSize int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxSize && h <= maxSize {
		return src
	}

	scale := float64(maxSize) / float64(w)
	if h > w {
		scale = float64(maxSize) / float64(h)
	}
	// Extreme aspect ratios would truncate the short side to zero, which no
	// encoder accepts. Both sides stay at least one pixel.
	dst := image.NewRGBA(image.Rect(0, 0, max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// thumbnailName maps a stored image filename to its thumbnail filename.
// Thumbnails are only ever png or jpeg encoded, so a gif original gets a
// .jpg thumbnail instead of a misleading .gif extension.
func thumbnailName(filename string) string {
	ext := filepath.Ext(filename)
	if ext == ".png" {
		return filename
	}
	return strings.TrimSuffix(filename, ext) + ".jpg"
}

func extensionFor(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
