package generation

import (
	"context"
	"fmt"

	"github.com/phrazzld/scry-import/internal/domain"
)

// Image is the input handed to the analysis service: the raw bytes of one
// submitted image together with its original filename.
type Image struct {
	Filename string
	Data     []byte
	MIMEType string
}

// Analyzer turns one image into a complete result. It is the single outbound
// call made by the queue driver and is never invoked concurrently by it.
type Analyzer interface {
	// Analyze returns the structured exercise and rendered media for img.
	//
	// Parameters:
	//   - ctx: Context for the operation, which can be used for cancellation
	//   - img: The image to analyze
	//
	// Returns:
	//   - The result on success
	//   - An error wrapping one of the sentinels in errors.go on failure
	Analyze(ctx context.Context, img Image) (*domain.Result, error)
}

// Extractor calls the external model and returns the exercise found in an image.
type Extractor interface {
	Extract(ctx context.Context, img Image) (*domain.Exercise, error)
}

// Renderer produces the media that accompanies an exercise, cropped to region
// when one is given, and returns a reference to it.
type Renderer interface {
	Render(ctx context.Context, img Image, region *domain.Region) (string, error)
}

// Pipeline is an Analyzer that extracts an exercise and then renders its media.
type Pipeline struct {
	extractor Extractor
	renderer  Renderer
}

// NewPipeline creates a Pipeline. Both collaborators are required.
func NewPipeline(extractor Extractor, renderer Renderer) (*Pipeline, error) {
	if extractor == nil {
		return nil, fmt.Errorf("%w: extractor cannot be nil", ErrInvalidConfig)
	}
	if renderer == nil {
		return nil, fmt.Errorf("%w: renderer cannot be nil", ErrInvalidConfig)
	}
	return &Pipeline{extractor: extractor, renderer: renderer}, nil
}

// Analyze implements Analyzer.
func (p *Pipeline) Analyze(ctx context.Context, img Image) (*domain.Result, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPayload, img.Filename)
	}

	exercise, err := p.extractor.Extract(ctx, img)
	if err != nil {
		return nil, err
	}
	if exercise == nil {
		return nil, fmt.Errorf("%w: no exercise returned", ErrInvalidResponse)
	}
	if err := exercise.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	ref, err := p.renderer.Render(ctx, img, exercise.Region)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	return &domain.Result{Exercise: exercise, MediaRef: ref}, nil
}
