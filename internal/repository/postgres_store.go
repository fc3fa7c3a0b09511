package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/keelwise/keel/internal/models"
)

// ErrUnknownTable is returned for a table name outside the schema.
var ErrUnknownTable = errors.New("unknown table")

// ErrEmptyRecord is returned when a write carries no columns.
var ErrEmptyRecord = errors.New("record has no columns")

var knownTables = map[string]bool{
	models.TableResponseEnhancements: true,
	models.TableEnhancementFeedback:  true,
	models.TableFeedbackInsights:     true,
	models.TableUserPatternStrength:  true,
	models.TablePatternDetections:    true,
}

// PostgresStore writes records to the tables in pkg/database/schema.sql.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore. The pool must have pgvector types registered.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert adds one row.
func (s *PostgresStore) Insert(ctx context.Context, table string, record models.Record) error {
	query, args, err := buildInsertQuery(table, record)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	return nil
}

// Upsert inserts a row or, on conflict on conflictColumn, overwrites every other column.
func (s *PostgresStore) Upsert(ctx context.Context, table, conflictColumn string, record models.Record) error {
	query, args, err := buildUpsertQuery(table, conflictColumn, record)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}

	return nil
}

// List returns the rows whose columns equal every value in where.
func (s *PostgresStore) List(ctx context.Context, table string, where models.Record) ([]models.Record, error) {
	query, args, err := buildListQuery(table, where)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}

	raw, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}

	out := make([]models.Record, len(raw))
	for i, m := range raw {
		out[i] = models.Record(m)
	}

	return out, nil
}

// sortedColumns returns record's columns in a stable order and their encoded values.
func sortedColumns(record models.Record) ([]string, []any) {
	cols := make([]string, 0, len(record))
	for c := range record {
		cols = append(cols, c)
	}

	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = encodeValue(record[c])
	}

	return cols, args
}

// encodeValue maps Go values to what pgx needs; embeddings become pgvector vectors.
func encodeValue(v any) any {
	if vec, ok := v.([]float32); ok {
		return pgvector.NewVector(vec)
	}

	return v
}

func checkTable(table string) error {
	if !knownTables[table] {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	return nil
}

func buildInsertQuery(table string, record models.Record) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}

	if len(record) == 0 {
		return "", nil, ErrEmptyRecord
	}

	cols, args := sortedColumns(record)
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))

	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	return query, args, nil
}

func buildUpsertQuery(table, conflictColumn string, record models.Record) (string, []any, error) {
	if _, ok := record[conflictColumn]; !ok {
		return "", nil, fmt.Errorf("upsert into %s: record is missing conflict column %q", table, conflictColumn)
	}

	query, args, err := buildInsertQuery(table, record)
	if err != nil {
		return "", nil, err
	}

	cols, _ := sortedColumns(record)

	var updates []string

	for _, c := range cols {
		if c == conflictColumn {
			continue
		}

		q := pgx.Identifier{c}.Sanitize()
		updates = append(updates, q+" = EXCLUDED."+q)
	}

	conflict := pgx.Identifier{conflictColumn}.Sanitize()
	if len(updates) == 0 {
		query += " ON CONFLICT (" + conflict + ") DO NOTHING"
	} else {
		query += " ON CONFLICT (" + conflict + ") DO UPDATE SET " + strings.Join(updates, ", ")
	}

	return query, args, nil
}

func buildListQuery(table string, where models.Record) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}

	query := "SELECT * FROM " + pgx.Identifier{table}.Sanitize()

	if len(where) == 0 {
		return query, nil, nil
	}

	cols, args := sortedColumns(where)
	conditions := make([]string, len(cols))

	for i, c := range cols {
		conditions[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{c}.Sanitize(), i+1)
	}

	return query + " WHERE " + strings.Join(conditions, " AND "), args, nil
}
