package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior for transient provider failures.
type Config struct {
	MaxAttempts  int           // total attempts including the first (minimum 1)
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // backoff cap
	Multiplier   float64       // exponential backoff factor
	JitterFactor float64       // 0.0-1.0, +/- jitter to prevent synchronized retries

	// ExtraTransientPatterns extends the built-in transient classification
	// with operator-configured substrings. The classification list is policy,
	// not a hardcoded literal.
	ExtraTransientPatterns []string
}

// DefaultConfig returns the default policy for warehouse statements:
// 3 attempts, 250ms initial delay doubling up to 5s, 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// RetryableError is implemented by errors that explicitly declare their
// retryability. Such errors bypass pattern matching entirely.
type RetryableError interface {
	error
	IsRetryable() bool
}

// builtinTransientPatterns is the narrow set of provider-reported
// "temporarily unavailable" conditions retried by default.
var builtinTransientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"timed out",
	"temporarily unavailable",
	"temporary failure",
	"too many connections",
	"too many clients",
	"deadlock detected",
	"serialization failure",
	"could not serialize access",
	"the database system is starting up",
	"server is busy",
	"service unavailable",
}

// IsTransient determines whether an error is worth retrying under cfg.
// Errors implementing RetryableError decide for themselves; everything else
// is matched against the transient pattern list. Permanent failures (bad SQL,
// permission errors) must never burn the retry budget.
func IsTransient(cfg *Config, err error) bool {
	if err == nil {
		return false
	}
	if r, ok := err.(RetryableError); ok {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	patterns := builtinTransientPatterns
	if cfg != nil && len(cfg.ExtraTransientPatterns) > 0 {
		patterns = append(append([]string{}, patterns...), cfg.ExtraTransientPatterns...)
	}
	for _, p := range patterns {
		if strings.Contains(errStr, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// applyJitter spreads a delay by +/- jitterFactor.
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// Do executes fn, retrying transient failures up to the configured bound
// with exponential backoff. Non-transient errors return immediately.
// Respects context cancellation during wait periods.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(cfg, err) {
			return err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-time.After(applyJitter(delay, cfg.JitterFactor)):
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
