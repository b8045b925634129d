package intake

import (
	"errors"
	"fmt"
)

// Admission rejections are synchronous: the caller learns the reason at
// submission time and nothing is recorded. ErrValidation is the marker for
// malformed input; the specific sentinels wrap it so callers can match
// either the family or the exact cause with errors.Is.
var (
	ErrValidation = errors.New("validation failed")

	ErrEmptyContent    = fmt.Errorf("%w: empty content", ErrValidation)
	ErrContentTooLarge = fmt.Errorf("%w: content too large", ErrValidation)
	ErrUnsupportedMode = fmt.Errorf("%w: unsupported mode", ErrValidation)
	ErrEmptyBatch      = fmt.Errorf("%w: batch has no items", ErrValidation)
	ErrBatchTooLarge   = fmt.Errorf("%w: too many items in batch", ErrValidation)

	// ErrRateLimited rejects a caller that exhausted its sliding window.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrQueueSaturated rejects new work while the queue sits at its depth
	// ceiling. Cache hits still complete; only work needing a queue slot is
	// turned away.
	ErrQueueSaturated = errors.New("queue saturated")
)

// RejectionReason maps an admission error onto its metrics label.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrQueueSaturated):
		return "queue_saturated"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
