package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/generation"
)

// ErrUnsupportedImage is returned when the payload cannot be decoded.
var ErrUnsupportedImage = errors.New("unsupported image")

// LocalRenderer implements generation.Renderer by writing PNG files to a directory.
type LocalRenderer struct {
	dir    string
	logger *slog.Logger
}

var _ generation.Renderer = (*LocalRenderer)(nil)

// NewLocalRenderer creates a LocalRenderer that writes into dir, creating it if needed.
func NewLocalRenderer(dir string, logger *slog.Logger) (*LocalRenderer, error) {
	if dir == "" {
		return nil, errors.New("media directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &LocalRenderer{dir: dir, logger: logger.With("component", "media_renderer")}, nil
}

// Render crops img to region, or keeps the whole image when region is nil,
// and returns the path of the written PNG.
func (r *LocalRenderer) Render(ctx context.Context, img generation.Image, region *domain.Region) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnsupportedImage, img.Filename, err)
	}

	out := src
	if region != nil {
		rect, err := CropRect(src.Bounds(), *region)
		if err != nil {
			return "", err
		}
		out = crop(src, rect)
	}

	name := uuid.New().String() + ".png"
	path := filepath.Join(r.dir, name)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return "", fmt.Errorf("failed to encode media: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write media: %w", err)
	}

	r.logger.DebugContext(ctx, "rendered media",
		"filename", img.Filename,
		"source_format", format,
		"media_ref", path,
		"width", out.Bounds().Dx(),
		"height", out.Bounds().Dy())

	return path, nil
}

// CropRect maps a normalised region onto bounds. The result always lies inside
// bounds and is at least one pixel in each dimension.
func CropRect(bounds image.Rectangle, region domain.Region) (image.Rectangle, error) {
	if err := region.Validate(); err != nil {
		return image.Rectangle{}, err
	}

	w, h := bounds.Dx(), bounds.Dy()
	scale := func(v, size int) int { return v * size / domain.RegionScale }

	rect := image.Rect(
		bounds.Min.X+scale(region.XMin, w),
		bounds.Min.Y+scale(region.YMin, h),
		bounds.Min.X+scale(region.XMax, w),
		bounds.Min.Y+scale(region.YMax, h),
	).Intersect(bounds)

	if rect.Dx() < 1 {
		rect.Max.X = min(rect.Min.X+1, bounds.Max.X)
		rect.Min.X = rect.Max.X - 1
	}
	if rect.Dy() < 1 {
		rect.Max.Y = min(rect.Min.Y+1, bounds.Max.Y)
		rect.Min.Y = rect.Max.Y - 1
	}
	return rect, nil
}

func crop(src image.Image, rect image.Rectangle) image.Image {
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if s, ok := src.(subImager); ok {
		return s.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return dst
}
