//go:build integration

package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"document-chat/internal/config"
	"document-chat/internal/embedding"
	"document-chat/internal/models"
	"document-chat/internal/store"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("chat"),
		postgres.WithUsername("chat"),
		postgres.WithPassword("chat"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	for _, driver := range []string{config.DriverPgdriver, config.DriverPQ} {
		t.Run(driver, func(t *testing.T) {
			sqldb, err := ConnectDB(&config.DatabaseConfig{DSN: dsn, Driver: driver})
			require.NoError(t, err)
			bunDB := NewDB(sqldb, false)
			t.Cleanup(func() { _ = bunDB.Close() })

			require.NoError(t, DropChunks(ctx, bunDB))
			require.NoError(t, InitDB(ctx, bunDB))

			embedder := embedding.NewHashEmbedder(32)
			s := store.New(NewRepository(bunDB), embedder)

			h, err := s.Load(ctx, "doc")
			require.NoError(t, err)
			assert.Nil(t, h)

			chunks := []models.Chunk{
				{ID: "c1", Content: "red apples in the orchard", PageNumber: 1, ChunkID: 1},
				{ID: "c2", Content: "rocket launch into orbit", PageNumber: 2, StartOffset: 10, ChunkID: 2},
				{ID: "c3", Content: "red apples in the orchard", PageNumber: 3, ChunkID: 3},
			}
			_, err = s.Build(ctx, chunks, "doc")
			require.NoError(t, err)

			h, err = s.Load(ctx, "doc")
			require.NoError(t, err)
			require.NotNil(t, h)
			assert.Equal(t, 3, h.Len())

			matches, err := s.Retrieve(ctx, h, "red apples in the orchard", 2)
			require.NoError(t, err)
			require.Len(t, matches, 2)
			assert.Equal(t, "c1", matches[0].Chunk.ID)
			assert.Equal(t, "c3", matches[1].Chunk.ID)
			assert.InDelta(t, 0, matches[0].Distance, 1e-4)

			_, err = s.Build(ctx, chunks[1:2], "doc")
			require.NoError(t, err)
			h, err = s.Load(ctx, "doc")
			require.NoError(t, err)
			assert.Equal(t, 1, h.Len())
		})
	}
}
