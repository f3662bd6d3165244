package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-chat/internal/models"
	"document-chat/internal/store"
)

const (
	metaPage        = "page"
	metaStartOffset = "start_offset"
	metaChunkID     = "chunk_id"
	metaSeq         = "seq"

	exportExt = ".chromem"
)

// VectorDBManager keeps one persistent chromem DB per store under
// <root>/<name>/, holding a single collection named after the store.
type VectorDBManager struct {
	root          string
	compress      bool
	encryptionKey string
	embeddingFunc chromem.EmbeddingFunc
}

// NewVectorDBManager creates the manager. embedder is only consulted if
// chromem needs to embed text itself; records arrive with their vectors.
func NewVectorDBManager(root string, compress bool, encryptionKey string, embedder embeddings.Embedder) (*VectorDBManager, error) {
	if root == "" {
		return nil, errors.New("store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	var ef chromem.EmbeddingFunc
	if embedder != nil {
		ef = func(ctx context.Context, text string) ([]float32, error) {
			return embedder.EmbedQuery(ctx, text)
		}
	}
	return &VectorDBManager{
		root:          root,
		compress:      compress,
		encryptionKey: encryptionKey,
		embeddingFunc: ef,
	}, nil
}

func (m *VectorDBManager) storePath(name string) string {
	return filepath.Join(m.root, name)
}

// ExportPath is the default snapshot location for a store.
func (m *VectorDBManager) ExportPath(name string) string {
	return filepath.Join(m.root, name+exportExt)
}

// Replace removes any previous store directory and writes records into a fresh one.
func (m *VectorDBManager) Replace(ctx context.Context, name string, records []models.Record) (store.Handle, error) {
	// build next to the live store and swap it in once complete
	tmp, err := os.MkdirTemp(m.root, "."+name+".building-")
	if err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	db, err := chromem.NewPersistentDB(tmp, m.compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	collection, err := db.CreateCollection(name, map[string]string{"source": name}, m.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.Chunk.ID,
			Content:   r.Chunk.Content,
			Metadata:  createMetadata(r),
			Embedding: r.Embedding,
		}
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	dir := m.storePath(name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to remove previous store: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return nil, fmt.Errorf("failed to move store into place: %w", err)
	}

	log.Debug().Str("path", dir).Int("documents", collection.Count()).Msg("Persisted collection")
	return &Index{name: name, collection: collection}, nil
}

// Open loads the store persisted under name, or returns (nil, nil).
func (m *VectorDBManager) Open(_ context.Context, name string) (store.Handle, error) {
	dir := m.storePath(name)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	db, err := chromem.NewPersistentDB(dir, m.compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	collection := db.GetCollection(name, m.embeddingFunc)
	if collection == nil || collection.Count() == 0 {
		return nil, nil
	}
	return &Index{name: name, collection: collection}, nil
}

// Export writes the store to a snapshot file, encrypted when an encryption key is configured.
func (m *VectorDBManager) Export(ctx context.Context, name, filePath string) error {
	dir := m.storePath(name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: store %q", models.ErrNotFound, name)
	}
	if filePath == "" {
		filePath = m.ExportPath(name)
	}

	db, err := chromem.NewPersistentDB(dir, m.compress)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if db.GetCollection(name, m.embeddingFunc) == nil {
		return fmt.Errorf("%w: collection %q", models.ErrNotFound, name)
	}

	log.Debug().
		Str("store", name).
		Str("file", filePath).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting store")
	if err := db.ExportToFile(filePath, m.compress, m.encryptionKey, name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import replaces the store name with the collection of the same name found in
// filePath. The existing store is left untouched when the snapshot cannot be read.
func (m *VectorDBManager) Import(ctx context.Context, name, filePath string) (store.Handle, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s", models.ErrNotFound, filePath)
	}
	tmp, err := os.MkdirTemp(m.root, "."+name+".importing-")
	if err != nil {
		return nil, fmt.Errorf("failed to create import directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	db, err := chromem.NewPersistentDB(tmp, m.compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	if err := db.ImportFromFile(filePath, m.encryptionKey, name); err != nil {
		return nil, fmt.Errorf("failed to import database: %w", err)
	}
	if db.GetCollection(name, m.embeddingFunc) == nil {
		return nil, fmt.Errorf("%w: collection %q in %s", models.ErrNotFound, name, filePath)
	}

	dir := m.storePath(name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to remove previous store: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return nil, fmt.Errorf("failed to move store into place: %w", err)
	}

	h, err := m.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: collection %q in %s is empty", models.ErrNotFound, name, filePath)
	}
	log.Debug().Str("path", dir).Int("documents", h.Len()).Msg("Imported collection")
	return h, nil
}

// Index is an opened chromem collection.
type Index struct {
	name       string
	collection *chromem.Collection
}

func (i *Index) Name() string { return i.name }

func (i *Index) Len() int { return i.collection.Count() }

// Nearest scans the whole collection so ties at the k-th place can be settled
// by insertion order. A store holds a single document, so this stays small.
func (i *Index) Nearest(ctx context.Context, query []float32, k int) ([]models.Match, error) {
	n := i.collection.Count()
	if n == 0 || k <= 0 {
		return nil, nil
	}
	results, err := i.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]models.Match, 0, len(results))
	for _, r := range results {
		chunk, seq := chunkFromResult(r)
		matches = append(matches, models.Match{
			Chunk:    chunk,
			Distance: 1 - r.Similarity,
			Seq:      seq,
		})
	}
	store.SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func createMetadata(r models.Record) map[string]string {
	return map[string]string{
		metaPage:        strconv.Itoa(r.Chunk.PageNumber),
		metaStartOffset: strconv.Itoa(r.Chunk.StartOffset),
		metaChunkID:     strconv.Itoa(r.Chunk.ChunkID),
		metaSeq:         strconv.Itoa(r.Seq),
	}
}

func chunkFromResult(r chromem.Result) (models.Chunk, int) {
	atoi := func(key string) int {
		v, _ := strconv.Atoi(r.Metadata[key])
		return v
	}
	return models.Chunk{
		ID:          r.ID,
		Content:     r.Content,
		PageNumber:  atoi(metaPage),
		StartOffset: atoi(metaStartOffset),
		ChunkID:     atoi(metaChunkID),
	}, atoi(metaSeq)
}
