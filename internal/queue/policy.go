package queue

import (
	"fmt"
	"time"
)

// Policy holds the constants that govern retries, waits and the hard stop.
type Policy struct {
	// MaxRetries is the number of transient retries allowed per item. The
	// failure observed when RetryCount has reached it marks the item as failed.
	MaxRetries int

	// MaxConsecutiveRateLimits aborts the run once this many rate-limit
	// classifications have been seen without an intervening success.
	MaxConsecutiveRateLimits int

	// CountOverloadTowardHardStop makes ServiceOverloaded failures count
	// toward MaxConsecutiveRateLimits as well.
	CountOverloadTowardHardStop bool

	// RateLimitWait and OverloadWait are the base waits per class. The wait
	// before retry n is base*(n+1), capped at MaxWait.
	RateLimitWait time.Duration
	OverloadWait  time.Duration
	MaxWait       time.Duration

	// Cooldown is the courtesy pause after every successful analysis.
	Cooldown time.Duration

	// Tick is the length of one countdown step.
	Tick time.Duration

	// ErrorMessageMaxLength bounds the message stored on an item, in runes.
	ErrorMessageMaxLength int
}

// DefaultPolicy returns a Policy with reasonable defaults
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:               3,
		MaxConsecutiveRateLimits: 5,
		RateLimitWait:            30 * time.Second,
		OverloadWait:             10 * time.Second,
		MaxWait:                  120 * time.Second,
		Cooldown:                 4 * time.Second,
		Tick:                     time.Second,
		ErrorMessageMaxLength:    160,
	}
}

// Validate checks that every field holds a usable value.
func (p Policy) Validate() error {
	switch {
	case p.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidPolicy)
	case p.MaxConsecutiveRateLimits < 1:
		return fmt.Errorf("%w: max consecutive rate limits must be at least 1", ErrInvalidPolicy)
	case p.RateLimitWait <= 0 || p.OverloadWait <= 0:
		return fmt.Errorf("%w: wait durations must be positive", ErrInvalidPolicy)
	case p.MaxWait < p.RateLimitWait || p.MaxWait < p.OverloadWait:
		return fmt.Errorf("%w: max wait must not be shorter than a base wait", ErrInvalidPolicy)
	case p.Cooldown < 0:
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidPolicy)
	case p.Tick <= 0:
		return fmt.Errorf("%w: tick must be positive", ErrInvalidPolicy)
	case p.ErrorMessageMaxLength < 0:
		return fmt.Errorf("%w: error message length must not be negative", ErrInvalidPolicy)
	}
	return nil
}

// WaitFor returns the backoff before retrying an item that has already been
// retried retryCount times after a failure of class c.
func (p Policy) WaitFor(c ErrorClass, retryCount int) time.Duration {
	base := p.OverloadWait
	if c == ClassRateLimited {
		base = p.RateLimitWait
	}
	d := base * time.Duration(retryCount+1)
	if d > p.MaxWait {
		d = p.MaxWait
	}
	return d
}

// WaitSeconds is WaitFor expressed as whole countdown seconds, rounded up.
func (p Policy) WaitSeconds(c ErrorClass, retryCount int) int {
	d := p.WaitFor(c, retryCount)
	return int((d + time.Second - 1) / time.Second)
}

// countsTowardHardStop reports whether a failure of class c advances the
// consecutive rate-limit counter.
func (p Policy) countsTowardHardStop(c ErrorClass) bool {
	return c == ClassRateLimited || (c == ClassServiceOverloaded && p.CountOverloadTowardHardStop)
}
