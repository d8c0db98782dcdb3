package cdr

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"marta-relay/internal/models"
)

//go:embed schema.sql
var schema string

// Pool is what the call log needs from *pgxpool.Pool.
type Pool interface {
	txStarter
	querier
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder writes call records through a pool.
type Recorder struct {
	pool Pool
}

func NewRecorder(pool Pool) *Recorder {
	return &Recorder{pool: pool}
}

func (r *Recorder) RecordCall(ctx context.Context, rec models.CallRecord) error {
	return InsertCallRecord(ctx, r.pool, rec)
}

func (r *Recorder) ListCalls(ctx context.Context, f Filter) ([]models.CallRecord, error) {
	return ListCalls(ctx, r.pool, f)
}

// EnsureSchema creates the intake schema if it does not exist yet. Without
// arguments pgx sends the multi-statement script over the simple protocol.
func EnsureSchema(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
