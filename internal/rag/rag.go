package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"document-chat/internal/config"
	"document-chat/internal/llmservice"
	"document-chat/internal/models"
	"document-chat/internal/store"
)

type RAG struct {
	llm         llms.Model
	temperature float64
	timeout     time.Duration
}

func NewRAG(llm llms.Model, llmConfig *config.LLMConfig) *RAG {
	r := &RAG{llm: llm}
	if llmConfig != nil {
		r.temperature = llmConfig.Temperature
		r.timeout = llmConfig.Timeout
	}
	return r
}

// BuildMessages lays out the prompt: the fixed instruction with the chunk
// texts as context, followed by the question.
func BuildMessages(question string, chunks []models.Chunk) []llms.MessageContent {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	system := fmt.Sprintf(models.QASystemPrompt, strings.Join(texts, models.ContextSeparator))
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	}
}

// Answer asks the model to answer question from chunks. Failures are returned
// as ErrGeneration and never retried.
func (r *RAG) Answer(ctx context.Context, question string, chunks []models.Chunk) (models.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return models.Answer{}, fmt.Errorf("%w: question is empty", models.ErrValidation)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := llmservice.GenerateContent(ctx, r.llm, r.temperature, BuildMessages(question, chunks))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.Answer{}, fmt.Errorf("%w: timed out after %s: %w", models.ErrGeneration, r.timeout, err)
		}
		return models.Answer{}, fmt.Errorf("%w: %w", models.ErrGeneration, err)
	}

	supporting := make([]models.Chunk, len(chunks))
	copy(supporting, chunks)

	log.Debug().
		Str("question", question).
		Int("sources", len(supporting)).
		Dur("took", time.Since(start)).
		Msg("Generated answer")
	return models.Answer{Query: question, Text: strings.TrimSpace(text), SupportingChunks: supporting}, nil
}

// Query retrieves the k nearest chunks of h and answers question from them.
func (r *RAG) Query(ctx context.Context, s *store.Store, h store.Handle, question string, k int) (models.Answer, error) {
	matches, err := s.Retrieve(ctx, h, question, k)
	if err != nil {
		return models.Answer{}, err
	}
	return r.Answer(ctx, question, store.Chunks(matches))
}

// FormatSources renders the answer followed by its citations.
func FormatSources(answer models.Answer) string {
	if len(answer.SupportingChunks) == 0 {
		return answer.Text
	}
	var b strings.Builder
	b.WriteString(answer.Text)
	b.WriteString("\n\n**Sources:**\n")
	for _, c := range answer.SupportingChunks {
		fmt.Fprintf(&b, "- *%s...* (%s)\n", Preview(c.Content, models.SourcePreviewLen), c.PageLabel())
	}
	return strings.TrimRight(b.String(), "\n")
}

// Preview returns the first n characters of s on one line.
func Preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
