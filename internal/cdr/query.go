package cdr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"marta-relay/internal/models"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Filter narrows ListCalls. Zero values are ignored.
type Filter struct {
	From   time.Time
	To     time.Time
	Caller string
	Limit  int
}

// BuildQuery returns the SELECT for f with positional arguments.
func BuildQuery(f Filter) (string, []any) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var (
		where []string
		args  []any
		idx   = 1
	)
	if !f.From.IsZero() {
		where = append(where, "started_at >= $"+strconv.Itoa(idx))
		args = append(args, f.From)
		idx++
	}
	if !f.To.IsZero() {
		where = append(where, "started_at <= $"+strconv.Itoa(idx))
		args = append(args, f.To)
		idx++
	}
	if f.Caller != "" {
		where = append(where, "caller_number = $"+strconv.Itoa(idx))
		args = append(args, f.Caller)
	}

	query := "SELECT id, call_sid, stream_sid, caller_number, started_at, ended_at, is_night, day_part, " +
		"transcript_lines, end_reason, extraction_ok, notification_status, created_at FROM intake.calls"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT " + strconv.Itoa(limit)
	return query, args
}

// ListCalls returns the most recent calls matching f, newest first.
func ListCalls(ctx context.Context, db querier, f Filter) ([]models.CallRecord, error) {
	query, args := BuildQuery(f)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	items := []models.CallRecord{}
	for rows.Next() {
		var c models.CallRecord
		if err := rows.Scan(
			&c.ID, &c.CallSID, &c.StreamSID, &c.CallerNumber,
			&c.StartedAt, &c.EndedAt, &c.IsNight, &c.DayPart,
			&c.TranscriptLines, &c.EndReason, &c.ExtractionOK, &c.NotificationStatus,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return items, nil
}
