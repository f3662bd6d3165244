package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-chat/internal/config"
	"document-chat/internal/models"
	"document-chat/internal/store"
)

// ChunkRow is one embedded chunk of a named store.
type ChunkRow struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	StoreName   string          `bun:"store_name,pk"`
	Seq         int             `bun:"seq,pk"`
	ChunkKey    string          `bun:"chunk_key,notnull"`
	ChunkID     int             `bun:"chunk_id,notnull"`
	Content     string          `bun:"content,notnull"`
	PageNumber  int             `bun:"page_number,notnull"`
	StartOffset int             `bun:"start_offset,notnull"`
	Embedding   pgvector.Vector `bun:"embedding,type:vector,notnull"`

	Distance float32 `bun:"distance,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a connection pool with the configured driver.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPQ:
		return sql.Open("postgres", cfg.DSN)
	case config.DriverPgdriver, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %q", cfg.Driver)
	}
}

// InitDB enables pgvector and creates the chunks table.
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	_, err := db.NewCreateTable().Model((*ChunkRow)(nil)).IfNotExists().Exec(ctx)
	return err
}

func DropChunks(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*ChunkRow)(nil)).IfExists().Exec(ctx)
	return err
}

// Repository stores every named index as rows of the chunks table.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Replace deletes the rows of name and inserts records in one transaction.
func (r *Repository) Replace(ctx context.Context, name string, records []models.Record) (store.Handle, error) {
	rows := make([]ChunkRow, len(records))
	for i, rec := range records {
		rows[i] = ChunkRow{
			StoreName:   name,
			Seq:         rec.Seq,
			ChunkKey:    rec.Chunk.ID,
			ChunkID:     rec.Chunk.ChunkID,
			Content:     rec.Chunk.Content,
			PageNumber:  rec.Chunk.PageNumber,
			StartOffset: rec.Chunk.StartOffset,
			Embedding:   pgvector.NewVector(rec.Embedding),
		}
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*ChunkRow)(nil)).Where("store_name = ?", name).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			log.Debug().Str("store", name).Int64("rows", n).Msg("Removed previous store rows")
		}
		if len(rows) == 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	return &Index{db: r.db, name: name, count: len(rows)}, nil
}

// Open returns (nil, nil) when name has no rows.
func (r *Repository) Open(ctx context.Context, name string) (store.Handle, error) {
	count, err := r.db.NewSelect().Model((*ChunkRow)(nil)).Where("store_name = ?", name).Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return &Index{db: r.db, name: name, count: count}, nil
}

type Index struct {
	db    *bun.DB
	name  string
	count int
}

func (i *Index) Name() string { return i.name }

func (i *Index) Len() int { return i.count }

// Nearest orders by cosine distance, then insertion order.
func (i *Index) Nearest(ctx context.Context, query []float32, k int) ([]models.Match, error) {
	var rows []ChunkRow
	err := i.db.NewSelect().
		Model(&rows).
		Column("store_name", "seq", "chunk_key", "chunk_id", "content", "page_number", "start_offset").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(query)).
		Where("store_name = ?", i.name).
		OrderExpr("distance ASC, seq ASC").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]models.Match, len(rows))
	for j, row := range rows {
		matches[j] = models.Match{
			Chunk: models.Chunk{
				ID:          row.ChunkKey,
				Content:     row.Content,
				PageNumber:  row.PageNumber,
				StartOffset: row.StartOffset,
				ChunkID:     row.ChunkID,
			},
			Distance: row.Distance,
			Seq:      row.Seq,
		}
	}
	return matches, nil
}
