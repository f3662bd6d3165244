package llmservice

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// FakeModel is an llms.Model that records its requests and replies with
// Reply, or fails with Err. Block, when set, is waited on before replying so
// callers can exercise cancellation.
type FakeModel struct {
	Reply string
	Err   error
	Block chan struct{}

	mu       sync.Mutex
	requests [][]llms.MessageContent
	options  []llms.CallOptions
}

func (m *FakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.mu.Lock()
	m.requests = append(m.requests, messages)
	m.options = append(m.options, opts)
	m.mu.Unlock()

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.Reply}}}, nil
}

func (m *FakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Requests returns the messages of every call so far.
func (m *FakeModel) Requests() [][]llms.MessageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]llms.MessageContent(nil), m.requests...)
}

// LastOptions returns the call options of the latest request.
func (m *FakeModel) LastOptions() llms.CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return llms.CallOptions{}
	}
	return m.options[len(m.options)-1]
}

// PromptText flattens the text parts of messages.
func PromptText(messages []llms.MessageContent) string {
	var b strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if t, ok := part.(llms.TextContent); ok {
				b.WriteString(t.Text)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
