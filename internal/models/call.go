package models

import (
	"errors"
	"time"
)

// ErrDuplicateCall is returned by call-log stores for an already recorded
// CallSid.
var ErrDuplicateCall = errors.New("call already recorded")

// NotificationStatus records which SMS, if any, reached the dispatcher.
type NotificationStatus string

const (
	NotificationTicket   NotificationStatus = "ticket"
	NotificationFallback NotificationStatus = "fallback"
	NotificationFailed   NotificationStatus = "failed"
	NotificationSkipped  NotificationStatus = "skipped"
)

// CallRecord is the metadata kept for a finished call. It deliberately
// carries neither the transcript nor the ticket.
type CallRecord struct {
	ID                 int64              `db:"id" json:"id"`
	CallSID            string             `db:"call_sid" json:"call_sid"`
	StreamSID          *string            `db:"stream_sid" json:"stream_sid,omitempty"`
	CallerNumber       *string            `db:"caller_number" json:"caller_number,omitempty"`
	StartedAt          time.Time          `db:"started_at" json:"started_at"`
	EndedAt            time.Time          `db:"ended_at" json:"ended_at"`
	IsNight            bool               `db:"is_night" json:"is_night"`
	DayPart            string             `db:"day_part" json:"day_part"`
	TranscriptLines    int                `db:"transcript_lines" json:"transcript_lines"`
	EndReason          string             `db:"end_reason" json:"end_reason"`
	ExtractionOK       bool               `db:"extraction_ok" json:"extraction_ok"`
	NotificationStatus NotificationStatus `db:"notification_status" json:"notification_status"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
}
