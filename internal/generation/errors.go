package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when analysis fails for any general reason
	ErrGenerationFailed = errors.New("failed to analyze image")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrRateLimited is returned when the service reports that the quota is exhausted
	ErrRateLimited = errors.New("rate limited by analysis service")

	// ErrServiceOverloaded is returned when the service is temporarily unavailable
	ErrServiceOverloaded = errors.New("analysis service overloaded")

	// ErrInvalidConfig is returned when the analyzer configuration is invalid
	ErrInvalidConfig = errors.New("invalid analyzer configuration")

	// ErrEmptyPayload is returned when an image carries no bytes
	ErrEmptyPayload = errors.New("image payload is empty")

	// ErrRenderFailed is returned when the analysed image cannot be turned
	// into a media file, for example because it does not decode
	ErrRenderFailed = errors.New("failed to render media")
)
