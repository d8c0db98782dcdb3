// Package cdr keeps the call log: one row of metadata per finished call.
// Tickets and transcripts are never stored.
package cdr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"marta-relay/internal/models"
)

// txStarter is the minimal interface needed from a pgx pool for InsertCallRecord.
type txStarter interface {
	BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error)
}

var (
	// ErrInvalidCallRecord is returned when a record cannot be stored as is.
	ErrInvalidCallRecord = errors.New("invalid call record")
	// ErrDuplicateCall is returned when call_sid is already logged.
	ErrDuplicateCall = models.ErrDuplicateCall
)

// InsertCallRecord stores rec in intake.calls and folds its outcome into
// the per-day counters in intake.daily_outcomes, in one transaction.
func InsertCallRecord(ctx context.Context, pool txStarter, rec models.CallRecord) (err error) {
	if err := validate(rec); err != nil {
		slog.Warn("rejecting call record", "call_sid", rec.CallSID, "error", err)
		return err
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				slog.Error("failed to rollback call record transaction", "error", rbErr)
			}
			return
		}

		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("commit tx: %w", commitErr)
		}
	}()

	cmdTag, execErr := tx.Exec(ctx, `
        INSERT INTO intake.calls (
            call_sid, stream_sid, caller_number,
            started_at, ended_at, is_night, day_part,
            transcript_lines, end_reason, extraction_ok, notification_status
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
        )
        ON CONFLICT (call_sid) DO NOTHING
    `,
		rec.CallSID,
		nullable(rec.StreamSID),
		nullable(rec.CallerNumber),
		rec.StartedAt.UTC(),
		rec.EndedAt.UTC(),
		rec.IsNight,
		rec.DayPart,
		rec.TranscriptLines,
		rec.EndReason,
		rec.ExtractionOK,
		string(rec.NotificationStatus),
	)
	if execErr != nil {
		return fmt.Errorf("insert call: %w", execErr)
	}

	if cmdTag.RowsAffected() == 0 {
		slog.Info("call already recorded", "call_sid", rec.CallSID)
		return ErrDuplicateCall
	}

	day := rec.StartedAt.UTC().Truncate(24 * time.Hour)
	if _, err = tx.Exec(ctx, `
        INSERT INTO intake.daily_outcomes (day, notification_status, calls)
        VALUES ($1, $2, 1)
        ON CONFLICT (day, notification_status) DO UPDATE
        SET calls = intake.daily_outcomes.calls + 1
    `, day, string(rec.NotificationStatus)); err != nil {
		return fmt.Errorf("update daily outcomes: %w", err)
	}

	slog.Info("recorded call", "call_sid", rec.CallSID, "end_reason", rec.EndReason, "notification", rec.NotificationStatus)
	return nil
}

func validate(rec models.CallRecord) error {
	switch {
	case strings.TrimSpace(rec.CallSID) == "":
		return fmt.Errorf("%w: missing call_sid", ErrInvalidCallRecord)
	case rec.StartedAt.IsZero() || rec.EndedAt.IsZero():
		return fmt.Errorf("%w: missing timestamps", ErrInvalidCallRecord)
	case rec.EndedAt.Before(rec.StartedAt):
		return fmt.Errorf("%w: ended_at before started_at", ErrInvalidCallRecord)
	}
	switch rec.NotificationStatus {
	case models.NotificationTicket, models.NotificationFallback, models.NotificationFailed, models.NotificationSkipped:
	default:
		return fmt.Errorf("%w: unknown notification status %q", ErrInvalidCallRecord, rec.NotificationStatus)
	}
	return nil
}

func nullable(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
