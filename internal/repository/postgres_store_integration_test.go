//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/keelwise/keel/internal/models"
	"github.com/keelwise/keel/pkg/database"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("keel"),
		postgres.WithUsername("keel"),
		postgres.WithPassword("keel"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := database.Open(ctx, url, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewPostgresStore(pool)
}

func TestPostgresStore(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("feedback rows round trip", func(t *testing.T) {
		for _, helpful := range []bool{true, false} {
			require.NoError(t, store.Insert(ctx, models.TableEnhancementFeedback, models.Record{
				"id":              uuid.Must(uuid.NewV7()),
				"user_id":         "u1",
				"enhancement_id":  "e1",
				"engaged":         true,
				"helpful":         helpful,
				"action_taken":    false,
				"business_impact": false,
				"created_at":      now,
			}))
		}

		rows, err := store.List(ctx, models.TableEnhancementFeedback, models.Record{"user_id": "u1", "helpful": true})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, true, rows[0]["engaged"])
		assert.WithinDuration(t, now, rows[0]["created_at"].(time.Time), time.Millisecond)
	})

	t.Run("pattern strength upsert keeps one row", func(t *testing.T) {
		for _, strength := range []string{"baseline", models.StrengthIncreased} {
			require.NoError(t, store.Upsert(ctx, models.TableUserPatternStrength, "user_id", models.Record{
				"user_id":      "u1",
				"strength":     strength,
				"last_updated": now,
			}))
		}

		rows, err := store.List(ctx, models.TableUserPatternStrength, models.Record{"user_id": "u1"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, models.StrengthIncreased, rows[0]["strength"])
	})

	t.Run("pattern detection with embedding", func(t *testing.T) {
		require.NoError(t, store.Insert(ctx, models.TablePatternDetections, models.Record{
			"id":                 uuid.Must(uuid.NewV7()),
			"user_id":            "u2",
			"message_hash":       "abc",
			"patterns":           []string{models.PatternOverwhelm},
			"primary_confidence": 0.8,
			"embedding":          []float32{0.1, 0.2, 0.3},
			"created_at":         now,
		}))

		rows, err := store.List(ctx, models.TablePatternDetections, models.Record{"user_id": "u2"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.InDelta(t, 0.8, rows[0]["primary_confidence"], 1e-9)
	})
}
