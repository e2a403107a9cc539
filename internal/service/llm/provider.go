// Package llm defines the chat-completion boundary used by extraction.
//
// Providers must be safe for concurrent use and must not retry: rate limits
// are reported to the caller, which decides whether to try again.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the provider rejected the credentials.
	ErrUnauthorized = errors.New("llm: unauthorized")
	// ErrRateLimited means the provider throttled the request.
	ErrRateLimited = errors.New("llm: rate limited")
	// ErrEmptyResponse means the provider returned no choices.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Message is one chat message.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest carries a single non-streaming completion.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	// JSONObject asks the provider to constrain output to a JSON object.
	JSONObject bool
}

// Usage holds token accounting returned by the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the raw assistant text plus usage.
type CompletionResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// Provider performs one chat completion.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ClassifyStatus wraps err with the sentinel matching an HTTP status code.
func ClassifyStatus(code int, err error) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	default:
		return err
	}
}

type unconfigured struct {
	reason string
}

// Unconfigured returns a provider that fails every call with ErrUnauthorized.
// It lets the service start without credentials and report the setup problem per request.
func Unconfigured(reason string) Provider {
	return unconfigured{reason: reason}
}

func (u unconfigured) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnauthorized, u.reason)
}
