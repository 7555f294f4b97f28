package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-import/internal/api/shared"
	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/queue"
	"github.com/phrazzld/scry-import/internal/service"
	"github.com/phrazzld/scry-import/internal/store"
)

const genericErrorMessage = "An unexpected error occurred"

// errorMapping pairs a sentinel with its HTTP status and client-safe message.
type errorMapping struct {
	target  error
	status  int
	message string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{queue.ErrItemNotFound, http.StatusNotFound, "Item not found"},
	{service.ErrNoRunYet, http.StatusNotFound, "No run has finished yet"},
	{store.ErrNotFound, http.StatusNotFound, "Record not found"},

	{queue.ErrRunInProgress, http.StatusConflict, "A run is already in progress"},
	{queue.ErrNoRunInProgress, http.StatusConflict, "No run is in progress"},
	{queue.ErrNotWaiting, http.StatusConflict, "No item is waiting"},
	{service.ErrNothingToExport, http.StatusConflict, "No artifacts to export"},

	{queue.ErrInvalidPayload, http.StatusBadRequest, "Invalid upload"},
	{queue.ErrDuplicatePayload, http.StatusBadRequest, "Duplicate upload"},
	{domain.ErrInvalidID, http.StatusBadRequest, "Invalid ID"},
	{store.ErrInvalidEntity, http.StatusBadRequest, "Invalid entity data"},
	{domain.ErrValidation, http.StatusBadRequest, "Validation error"},

	{service.ErrNoExporters, http.StatusServiceUnavailable, "Export is not configured"},
	{store.ErrUnavailable, http.StatusServiceUnavailable, "Storage is temporarily unavailable"},
}

func lookupError(err error) (errorMapping, bool) {
	if err == nil {
		return errorMapping{}, false
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return errorMapping{}, false
}

// MapErrorToStatusCode returns the HTTP status for err, 500 when unknown.
func MapErrorToStatusCode(err error) int {
	if m, ok := lookupError(err); ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// GetSafeErrorMessage returns a message for err that never includes its text.
func GetSafeErrorMessage(err error) string {
	if m, ok := lookupError(err); ok {
		return m.message
	}
	return genericErrorMessage
}

// HandleAPIError writes the status and safe message for err and logs the
// redacted details. A non-empty fallback replaces the generic message for
// unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	m, ok := lookupError(err)
	if !ok {
		m = errorMapping{status: http.StatusInternalServerError, message: genericErrorMessage}
		if fallback != "" {
			m.message = fallback
		}
	}
	shared.RespondWithErrorAndLog(w, r, m.status, m.message, err)
}

var validationTagMessages = map[string]string{
	"required": "required field",
	"min":      "too short",
	"max":      "too long",
	"oneof":    "invalid value",
}

// SanitizeValidationError describes the first failed field of a validator
// error without echoing the submitted value.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	msg, ok := validationTagMessages[fe.Tag()]
	if !ok {
		msg = "validation failed"
	}
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), msg)
}
