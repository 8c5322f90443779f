package engine

import (
	"time"

	"github.com/Priya8975/session-gateway/internal/domain"
)

// retryDelay computes the pause before the next attempt. attempt is the
// 1-based index of the attempt that just failed:
//
//	constant:    initialDelay
//	linear:      initialDelay * attempt
//	exponential: initialDelay * 2^(attempt-1)
func retryDelay(strategy domain.BackoffStrategy, attempt int, initialDelayMs int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := time.Duration(initialDelayMs) * time.Millisecond

	switch strategy {
	case domain.BackoffConstant:
		return initial
	case domain.BackoffLinear:
		return initial * time.Duration(attempt)
	case domain.BackoffExponential:
		shift := attempt - 1
		if shift > 20 {
			shift = 20 // attempts cap at 15; guard the shift anyway
		}
		return initial * time.Duration(1<<shift)
	default:
		return initial
	}
}
