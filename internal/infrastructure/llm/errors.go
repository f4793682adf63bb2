// Package llm adapts hosted language-model APIs to the Completer port.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"PaperDigest/internal/retry"
)

// classifyStatus marks an API failure as transient or permanent.
// Rate limits and server errors are retried; auth and request errors are not.
func classifyStatus(statusCode int, err error) error {
	err = fmt.Errorf("language model API error (status %d): %w", statusCode, err)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return retry.Transient(err)
	case statusCode == http.StatusRequestTimeout:
		return retry.Transient(err)
	case statusCode >= 500:
		return retry.Transient(err)
	default:
		return retry.Permanent(err)
	}
}

// classifyTransport handles failures that carry no HTTP status.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return retry.Permanent(err)
	}
	// Deadlines, resets and refused connections are all worth another attempt.
	return retry.Transient(err)
}
