package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-chat/internal/config"
	"document-chat/internal/models"
	"document-chat/internal/parser"
	"document-chat/internal/rag"
	"document-chat/internal/store"
)

type State int

const (
	Empty State = iota
	Indexing
	Ready
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Indexing:
		return "indexing"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrClosed = errors.New("session closed")

// Pipeline is the ingest/build/answer chain a session drives.
type Pipeline struct {
	Parser *parser.ParserConfig
	Store  *store.Store
	RAG    *rag.RAG
	TopK   int
}

func NewPipeline(cfg *config.Config, s *store.Store, r *rag.RAG) *Pipeline {
	return &Pipeline{Parser: parser.New(cfg), Store: s, RAG: r, TopK: cfg.RAG.TopK}
}

// Session is the state of one user interacting with one document. Every
// operation runs under the session's context, so Close or Cancel abort work
// that is still in flight.
type Session struct {
	id       string
	pipeline *Pipeline
	logger   zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	opMu      sync.Mutex
	opCancels map[int]context.CancelFunc
	nextOp    int

	mu         sync.RWMutex
	state      State
	handle     store.Handle
	document   string
	transcript []models.ChatTurn
}

func New(ctx context.Context, pipeline *Pipeline) *Session {
	id := uuid.NewString()
	sctx, cancel := context.WithCancel(ctx)
	return &Session{
		id:        id,
		pipeline:  pipeline,
		logger:    log.With().Str("session", id).Logger(),
		ctx:       sctx,
		cancel:    cancel,
		opCancels: map[int]context.CancelFunc{},
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Document is the name of the store the session is chatting with.
func (s *Session) Document() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.document
}

// Transcript returns a copy of the chat so far.
func (s *Session) Transcript() []models.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChatTurn(nil), s.transcript...)
}

// Close cancels in-flight work and ends the session.
func (s *Session) Close() {
	s.cancel()
	s.logger.Debug().Msg("Session closed")
}

// Cancel aborts the interactions currently running without ending the session.
func (s *Session) Cancel() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	for id, cancel := range s.opCancels {
		cancel()
		delete(s.opCancels, id)
	}
}

// begin derives an operation context bound to both the caller and the session.
func (s *Session) begin(ctx context.Context) (context.Context, func(), error) {
	if err := s.ctx.Err(); err != nil {
		return nil, nil, ErrClosed
	}
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	s.opMu.Lock()
	id := s.nextOp
	s.nextOp++
	s.opCancels[id] = cancel
	s.opMu.Unlock()

	return opCtx, func() {
		stop()
		cancel()
		s.opMu.Lock()
		delete(s.opCancels, id)
		s.opMu.Unlock()
	}, nil
}

// Upload ingests filePath and builds a fresh store named after it. On any
// failure the session goes back to Empty.
func (s *Session) Upload(ctx context.Context, filePath string) error {
	return s.upload(ctx, filePath, store.NameFromFile(filePath))
}

// UploadReader saves an uploaded document to a temporary file, indexes it
// under a name derived from filename and removes the temporary copy.
func (s *Session) UploadReader(ctx context.Context, filename string, r io.Reader) error {
	dir, err := os.MkdirTemp("", "document-chat-upload-")
	if err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return s.upload(ctx, path, store.NameFromFile(filename))
}

func (s *Session) upload(ctx context.Context, filePath, name string) error {
	opCtx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	if s.state == Indexing {
		s.mu.Unlock()
		return fmt.Errorf("%w: an upload is already being indexed", models.ErrValidation)
	}
	s.state, s.handle, s.document = Indexing, nil, ""
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info().Str("file", filePath).Str("store", name).Msg("Indexing document")

	h, err := s.index(opCtx, filePath, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = Empty
		s.logger.Error().Err(err).Str("file", filePath).Msg("Error processing document")
		return err
	}
	s.state, s.handle, s.document = Ready, h, name
	s.logger.Info().Str("store", name).Int("chunks", h.Len()).Dur("took", time.Since(start)).Msg("Document ready for chat")
	return nil
}

func (s *Session) index(ctx context.Context, filePath, name string) (store.Handle, error) {
	chunks, err := s.pipeline.Parser.Ingest(filePath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.pipeline.Store.Build(ctx, chunks, name)
}

// Open switches the session to a store persisted earlier.
func (s *Session) Open(ctx context.Context, name string) error {
	opCtx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	h, err := s.pipeline.Store.Load(opCtx, name)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("%w: no index store named %q, upload the document first", models.ErrNotFound, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Indexing {
		return fmt.Errorf("%w: an upload is being indexed", models.ErrValidation)
	}
	s.state, s.handle, s.document = Ready, h, name
	return nil
}

// Ask answers question from the current store. The user turn is always
// recorded; the assistant turn holds either the answer with its sources or
// the error message.
func (s *Session) Ask(ctx context.Context, question string) (models.Answer, error) {
	s.mu.RLock()
	state, h := s.state, s.handle
	s.mu.RUnlock()
	if state != Ready {
		return models.Answer{}, fmt.Errorf("%w: session is %s, upload a document first", models.ErrValidation, state)
	}

	opCtx, done, err := s.begin(ctx)
	if err != nil {
		return models.Answer{}, err
	}
	defer done()

	s.appendTurn(models.ChatTurn{Role: models.RoleUser, Content: question})

	answer, err := s.pipeline.RAG.Query(opCtx, s.pipeline.Store, h, question, s.pipeline.TopK)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error getting answer")
		s.appendTurn(models.ChatTurn{
			Role:    models.RoleAssistant,
			Content: fmt.Sprintf(models.ErrorAnswerTemplate, err),
			Failed:  true,
		})
		return models.Answer{}, err
	}

	s.appendTurn(models.ChatTurn{Role: models.RoleAssistant, Content: rag.FormatSources(answer)})
	return answer, nil
}

func (s *Session) appendTurn(turn models.ChatTurn) {
	s.mu.Lock()
	s.transcript = append(s.transcript, turn)
	s.mu.Unlock()
}
