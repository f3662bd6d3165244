package llmservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"document-chat/internal/config"
)

type emptyModel struct{ FakeModel }

func (m *emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func TestGenerateContent(t *testing.T) {
	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "hi")}

	t.Run("Passes the temperature", func(t *testing.T) {
		model := &FakeModel{Reply: "hello"}
		text, err := GenerateContent(context.Background(), model, 0.3, messages)
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
		assert.InDelta(t, 0.3, model.LastOptions().Temperature, 1e-9)
		assert.Equal(t, "hi\n", PromptText(model.Requests()[0]))
	})

	t.Run("Remote error is returned", func(t *testing.T) {
		model := &FakeModel{Err: errors.New("boom")}
		_, err := GenerateContent(context.Background(), model, 0, messages)
		require.EqualError(t, err, "boom")
	})

	t.Run("No choices is an error", func(t *testing.T) {
		_, err := GenerateContent(context.Background(), &emptyModel{}, 0, messages)
		require.Error(t, err)
	})
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), &config.LLMConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestNewClientOllama(t *testing.T) {
	client, err := NewClient(context.Background(), &config.LLMConfig{
		Provider: config.ProviderOllama,
		BaseURL:  "http://127.0.0.1:11434",
		Model:    "llama3",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}
