package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the tables the store writes to. Statements are idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}

// Open applies the schema and returns a pool whose connections know the vector type.
// The vector extension must exist before types can be registered, so the schema is
// applied through a short-lived bootstrap pool first.
func Open(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	bootstrap, err := NewPostgresPool(ctx, databaseURL, WithMaxConns(1))
	if err != nil {
		return nil, err
	}

	err = EnsureSchema(ctx, bootstrap)

	bootstrap.Close()

	if err != nil {
		return nil, err
	}

	return NewPostgresPool(ctx, databaseURL, WithMaxConns(maxConns), WithAfterConnect(pgxvec.RegisterTypes))
}
