package queue

import (
	"errors"
	"regexp"
	"strings"

	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/generation"
)

// ErrorClass is the three-way classification of an analysis failure.
type ErrorClass int

const (
	// ClassPermanent failures are not expected to resolve by waiting.
	ClassPermanent ErrorClass = iota
	// ClassRateLimited failures signal an exhausted quota.
	ClassRateLimited
	// ClassServiceOverloaded failures signal temporary unavailability.
	ClassServiceOverloaded
)

func (c ErrorClass) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassServiceOverloaded:
		return "service_overloaded"
	default:
		return "permanent"
	}
}

// Transient reports whether the failure is worth retrying after a wait.
func (c ErrorClass) Transient() bool {
	return c == ClassRateLimited || c == ClassServiceOverloaded
}

var (
	rateLimitCodeRegex = regexp.MustCompile(`\b429\b`)
	overloadCodeRegex  = regexp.MustCompile(`\b503\b`)

	rateLimitMarkers = []string{
		"resource_exhausted",
		"resource exhausted",
		"rate limit",
		"ratelimit",
		"rate-limit",
		"too many requests",
		"quota",
	}
	overloadMarkers = []string{
		"unavailable",
		"overloaded",
		"try again later",
	}

	// permanentErrors are definite outcomes. Their text often carries the
	// filename, so it must never be searched for status codes or markers.
	permanentErrors = []error{
		generation.ErrInvalidResponse,
		generation.ErrContentBlocked,
		generation.ErrEmptyPayload,
		generation.ErrInvalidConfig,
		generation.ErrRenderFailed,
		domain.ErrValidation,
		domain.ErrInvalidRegion,
	}
)

// Classify maps a raw failure from the analysis service to an ErrorClass.
//
// Known generation sentinels are recognised first: the transient ones by
// class, the definite ones as ClassPermanent. Only an unrecognised error has
// its text inspected for status codes and markers. Anything unrecognised, including a
// nil error, is ClassPermanent, so the driver never waits on a failure it does
// not understand.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassPermanent
	}

	switch {
	case errors.Is(err, generation.ErrRateLimited):
		return ClassRateLimited
	case errors.Is(err, generation.ErrServiceOverloaded):
		return ClassServiceOverloaded
	}
	for _, target := range permanentErrors {
		if errors.Is(err, target) {
			return ClassPermanent
		}
	}

	msg := strings.ToLower(err.Error())
	if rateLimitCodeRegex.MatchString(msg) || containsAny(msg, rateLimitMarkers) {
		return ClassRateLimited
	}
	if overloadCodeRegex.MatchString(msg) || containsAny(msg, overloadMarkers) {
		return ClassServiceOverloaded
	}
	return ClassPermanent
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
