// Package mock provides a test double for the llm.Provider interface.
//
//	p := &mock.Provider{Content: `{"patient":{},"symptoms":[]}`}
package mock

import (
	"context"
	"sync"

	"consult-scribe-service/internal/service/llm"
)

// Call records a single invocation of Complete.
type Call struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
// Err takes precedence over Content. Func, when set, takes precedence over both.
type Provider struct {
	mu sync.Mutex

	Content string
	Err     error
	Func    func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	calls []Call
}

// Complete records the call and returns the configured response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Ctx: ctx, Req: req})
	fn, content, err := p.Func, p.Content, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: content}, nil
}

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// SampleRecordJSON is a canned extraction response for local runs without a
// model endpoint.
const SampleRecordJSON = `{
  "patient": {"name": "Maria Lopez", "age": "52", "sex": "female"},
  "reasonForVisit": "Chest pain for two days",
  "history": "No history mentioned",
  "symptoms": ["chest pain"],
  "physicalExam": "Unremarkable",
  "diagnosis": "Likely costochondritis",
  "treatment": "Ibuprofen",
  "notes": "Follow up in one week"
}`
