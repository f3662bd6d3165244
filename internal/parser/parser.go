package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"document-chat/internal/config"
	"document-chat/internal/models"
)

type Parser interface {
	Ingest(filePath string) ([]models.Chunk, error)
}

type ParserConfig struct {
	Config *config.Config
}

// page is the extracted text of one page, slide or sheet.
type page struct {
	number int
	text   string
}

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
	unpaged             = 0
)

// New returns a Parser bound to cfg. A nil cfg uses the default window sizes.
func New(cfg *config.Config) *ParserConfig {
	if cfg == nil {
		cfg = &config.Config{
			RAG: config.RAGConfig{
				ChunkSize:    defaultChunkSize,
				ChunkOverlap: defaultChunkOverlap,
			},
		}
	} else if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
		cfg.RAG.ChunkOverlap = defaultChunkOverlap
	}
	return &ParserConfig{Config: cfg}
}

// Ingest reads filePath, extracts text per page and splits it into
// overlapping windows.
func Ingest(filePath string, cfg *config.Config) ([]models.Chunk, error) {
	return New(cfg).Ingest(filePath)
}

func (p *ParserConfig) Ingest(filePath string) ([]models.Chunk, error) {
	stat, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s", models.ErrNotFound, filePath)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", models.ErrParse, filePath, err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", models.ErrParse, filePath)
	}

	pages, err := extractPages(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrParse, filepath.Base(filePath), err)
	}

	var chunks []models.Chunk
	for _, pg := range pages {
		pageChunks, err := p.getChunks(pg.text, pg.number, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("%w: split page %d: %w", models.ErrParse, pg.number, err)
		}
		chunks = append(chunks, pageChunks...)
	}

	log.Debug().
		Str("file", filePath).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Msg("Ingested document")
	return chunks, nil
}

// SupportedExtensions lists the file types Ingest understands.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".pptx", ".xlsx", ".xlsm", ".xltx", ".md", ".markdown", ".txt"}
}

func extractPages(filePath string) ([]page, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".pptx":
		return parsePPTX(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	case ".xlsm", ".xltx":
		return parseExcelize(filePath)
	case ".md", ".markdown":
		return parseMarkdown(filePath)
	case ".txt":
		return parseText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %q", ext)
	}
}
