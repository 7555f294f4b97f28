package gemini

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/scry-import/internal/generation"
	"google.golang.org/genai"
)

// mapAPIError translates an error from the genai client into one wrapping a
// generation sentinel. Errors that are not API errors are wrapped as
// generation.ErrGenerationFailed with their text preserved, so the queue's
// classifier can still inspect it.
func mapAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
		}
		apiErr = *apiErrPtr
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", generation.ErrRateLimited, apiErr.Message)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", generation.ErrServiceOverloaded, apiErr.Message)
	default:
		return fmt.Errorf("%w: status %d %s: %s",
			generation.ErrGenerationFailed, apiErr.Code, apiErr.Status, apiErr.Message)
	}
}
