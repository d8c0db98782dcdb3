package cdr

import (
	"context"
	"strings"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"marta-relay/internal/models"
)

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    Filter
		wantWhere string
		wantArgs  int
		wantLimit string
	}{
		{name: "no filter", filter: Filter{}, wantWhere: "", wantArgs: 0, wantLimit: "LIMIT 100"},
		{name: "range", filter: Filter{From: from, To: to}, wantWhere: "WHERE started_at >= $1 AND started_at <= $2", wantArgs: 2, wantLimit: "LIMIT 100"},
		{name: "caller only", filter: Filter{Caller: "+34600111222", Limit: 5}, wantWhere: "WHERE caller_number = $1", wantArgs: 1, wantLimit: "LIMIT 5"},
		{name: "all and capped", filter: Filter{From: from, To: to, Caller: "+34", Limit: 5000}, wantWhere: "caller_number = $3", wantArgs: 3, wantLimit: "LIMIT 1000"},
	}

	for _, tc := range tests {
		query, args := BuildQuery(tc.filter)
		if tc.wantWhere == "" && strings.Contains(query, "WHERE") {
			t.Fatalf("%s: unexpected WHERE in %q", tc.name, query)
		}
		if !strings.Contains(query, tc.wantWhere) {
			t.Fatalf("%s: query %q missing %q", tc.name, query, tc.wantWhere)
		}
		if len(args) != tc.wantArgs {
			t.Fatalf("%s: args=%v", tc.name, args)
		}
		if !strings.HasSuffix(query, "ORDER BY started_at DESC "+tc.wantLimit) {
			t.Fatalf("%s: query %q", tc.name, query)
		}
	}
}

func TestListCalls(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	started := time.Date(2025, 3, 10, 23, 5, 0, 0, time.UTC)
	cols := []string{
		"id", "call_sid", "stream_sid", "caller_number", "started_at", "ended_at", "is_night", "day_part",
		"transcript_lines", "end_reason", "extraction_ok", "notification_status", "created_at",
	}
	mock.ExpectQuery(`SELECT id, call_sid .* FROM intake\.calls WHERE caller_number = \$1 ORDER BY started_at DESC LIMIT 10`).
		WithArgs("+34600111222").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(7), "CA7", strPtr("SS7"), strPtr("+34600111222"), started, started.Add(2*time.Minute),
				true, "noche", 3, "stop", false, "fallback", started.Add(2*time.Minute)).
			AddRow(int64(6), "CA6", nil, nil, started.Add(-time.Hour), started.Add(-59*time.Minute),
				true, "noche", 0, "caller_closed", true, "ticket", started.Add(-59*time.Minute)))

	items, err := ListCalls(context.Background(), mock, Filter{Caller: "+34600111222", Limit: 10})
	if err != nil {
		t.Fatalf("ListCalls: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items=%d, want 2", len(items))
	}
	if items[0].CallSID != "CA7" || items[0].StreamSID == nil || *items[0].StreamSID != "SS7" ||
		items[0].NotificationStatus != models.NotificationFallback || !items[0].IsNight {
		t.Fatalf("first item=%+v", items[0])
	}
	if items[1].StreamSID != nil || items[1].CallerNumber != nil {
		t.Fatalf("NULL columns must stay nil: %+v", items[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
