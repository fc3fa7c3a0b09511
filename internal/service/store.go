package service

import (
	"context"

	"github.com/keelwise/keel/internal/models"
)

// Store is the persistence collaborator. Tables are addressed by name; see the models.Table* constants.
type Store interface {
	Insert(ctx context.Context, table string, record models.Record) error
	Upsert(ctx context.Context, table, conflictColumn string, record models.Record) error
	List(ctx context.Context, table string, where models.Record) ([]models.Record, error)
}

// UsageTracker receives one event per analysis and generation call.
type UsageTracker interface {
	Track(ctx context.Context, ev models.UsageEvent)
}

type noopUsageTracker struct{}

func (noopUsageTracker) Track(context.Context, models.UsageEvent) {}
