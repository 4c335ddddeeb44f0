// Package llm wraps the external reasoning service. Responses are free-form
// text with no well-formedness guarantee; callers must validate everything
// before use.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the service answers with no content.
	ErrEmptyResponse = errors.New("reasoning service returned empty response")
	// ErrNoJSON is returned when no JSON object can be located in a response.
	ErrNoJSON = errors.New("no JSON object found in response")
)

// Client is the narrow interface the intake core uses to talk to the
// reasoning service.
type Client interface {
	// Complete sends a prompt and returns the raw text of the reply.
	Complete(ctx context.Context, system, prompt string) (string, error)
	// CompleteWithImage sends a prompt alongside a base64 data URL of an
	// uploaded document or photo and returns the extracted insights text.
	CompleteWithImage(ctx context.Context, prompt, imageDataURL string) (string, error)
}
