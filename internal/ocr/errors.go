package ocr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnrecognizable marks content the engine cannot extract text from
	// (corrupt payloads, unsupported encodings). Never retried.
	ErrUnrecognizable = errors.New("unrecognizable content")
	// ErrUnsupported marks requests the configured engine cannot serve, such
	// as a mode it does not implement. Never retried.
	ErrUnsupported = errors.New("unsupported by engine")
	// ErrBusy marks engine-side resource exhaustion. Retried with backoff.
	ErrBusy = errors.New("engine busy")
	// ErrTimeout marks executions that exceeded their wall-clock budget.
	// Retried with backoff.
	ErrTimeout = errors.New("recognition timeout")
	// ErrTransient marks everything else that is worth another attempt.
	ErrTransient = errors.New("transient engine failure")
)

// Wrap builds an error message that includes engine context while tagging it
// with the provided marker for later retry classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, engine, operation, message string, err error) error {
	detail := buildDetail(engine, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a recognition failure is worth another attempt.
// Unknown errors are treated as transient so that a flaky engine does not
// permanently fail jobs it could have served a moment later.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrUnrecognizable), errors.Is(err, ErrUnsupported):
		return false
	default:
		return true
	}
}

func buildDetail(engine, operation, message string) string {
	parts := make([]string, 0, 3)
	if engine = strings.TrimSpace(engine); engine != "" {
		parts = append(parts, engine)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "engine failure"
	}
	return strings.Join(parts, ": ")
}
