package store

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-chat/internal/embedding"
	"document-chat/internal/models"
)

// Handle is an opened, queryable index store.
type Handle interface {
	Name() string
	Len() int
	// Nearest returns up to k matches ordered by ascending distance.
	Nearest(ctx context.Context, query []float32, k int) ([]models.Match, error)
}

// Backend persists named index stores.
type Backend interface {
	// Replace drops whatever is stored under name and writes records in their place.
	Replace(ctx context.Context, name string, records []models.Record) (Handle, error)
	// Open returns (nil, nil) when nothing is stored under name.
	Open(ctx context.Context, name string) (Handle, error)
}

type Store struct {
	backend  Backend
	embedder embeddings.Embedder
}

func New(backend Backend, embedder embeddings.Embedder) *Store {
	return &Store{backend: backend, embedder: embedder}
}

// Build embeds every chunk and persists the result under name, replacing any
// store previously written with the same name.
func (s *Store) Build(ctx context.Context, chunks []models.Chunk, name string) (Handle, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks provided to build store %q", models.ErrValidation, name)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	vectors, err := embedding.EmbedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return nil, err
	}

	records := make([]models.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = models.Record{Chunk: chunk, Embedding: vectors[i], Seq: i}
	}

	h, err := s.backend.Replace(ctx, name, records)
	if err != nil {
		return nil, fmt.Errorf("failed to persist store %q: %w", name, err)
	}
	log.Info().Str("store", name).Int("chunks", len(records)).Msg("Index store built")
	return h, nil
}

// Load opens a persisted store. A missing store is (nil, nil).
func (s *Store) Load(ctx context.Context, name string) (Handle, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	h, err := s.backend.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %q: %w", name, err)
	}
	if h == nil {
		log.Info().Str("store", name).Msg("Index store not found, a document must be ingested first")
		return nil, nil
	}
	log.Info().Str("store", name).Int("chunks", h.Len()).Msg("Index store loaded")
	return h, nil
}

// Retrieve returns at most k matches for query, ordered by ascending distance
// with ties broken by insertion order.
func (s *Store) Retrieve(ctx context.Context, h Handle, query string, k int) ([]models.Match, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: store not initialized, build or load one first", models.ErrValidation)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", models.ErrValidation)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrValidation, k)
	}

	vector, err := embedding.EmbedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	matches, err := h.Nearest(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search store %q: %w", h.Name(), err)
	}
	SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Chunks strips the distances from matches.
func Chunks(matches []models.Match) []models.Chunk {
	chunks := make([]models.Chunk, len(matches))
	for i, m := range matches {
		chunks[i] = m.Chunk
	}
	return chunks
}

// SortMatches orders by distance, then insertion order.
func SortMatches(matches []models.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Seq < matches[j].Seq
	})
}

var (
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	validName       = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)
)

// NameFromFile derives a store name from an uploaded file: the base name
// without its extension, reduced to characters safe for a directory name.
func NameFromFile(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return models.DefaultStoreName
	}
	return name
}

func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: invalid store name %q", models.ErrValidation, name)
	}
	return nil
}
