package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MockProvider is a scripted provider for tests. Chat responses are consumed
// in order; Complete responses are consumed from their own queue.
type MockProvider struct {
	mu sync.Mutex

	// ChatResponses are returned in order by Chat. When exhausted, Chat
	// returns a plain end-turn response.
	ChatResponses []*Response

	// CompleteResponses are returned in order by Complete.
	CompleteResponses []json.RawMessage

	// Err, if set, is returned by every call.
	Err error

	// ChatCalls counts Chat invocations.
	ChatCalls int

	// CompleteCalls counts Complete invocations.
	CompleteCalls int
}

// Chat implements Provider.Chat.
func (p *MockProvider) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.ChatCalls++
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.ChatResponses) == 0 {
		return &Response{Content: "done", StopReason: StopReasonEndTurn}, nil
	}
	resp := p.ChatResponses[0]
	p.ChatResponses = p.ChatResponses[1:]
	return resp, nil
}

// Complete implements Provider.Complete.
func (p *MockProvider) Complete(ctx context.Context, prompt string, schema map[string]interface{}, deadline time.Duration) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.CompleteCalls++
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.CompleteResponses) == 0 {
		return nil, fmt.Errorf("no scripted completion available")
	}
	resp := p.CompleteResponses[0]
	p.CompleteResponses = p.CompleteResponses[1:]
	return resp, nil
}

// Name implements Provider.Name.
func (p *MockProvider) Name() string { return "mock" }

// Model implements Provider.Model.
func (p *MockProvider) Model() string { return "mock-model" }
