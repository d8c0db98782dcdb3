package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"marta-relay/internal/cdr"
	"marta-relay/internal/models"
)

type CallLister interface {
	ListCalls(ctx context.Context, f cdr.Filter) ([]models.CallRecord, error)
}

type CallsResponse struct {
	Items []models.CallRecord `json:"items"`
}

func CallsQueryHandler(calls CallLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls == nil {
			http.Error(w, "call log disabled", http.StatusServiceUnavailable)
			return
		}

		q := r.URL.Query()
		var f cdr.Filter

		if s := q.Get("from"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid from", http.StatusBadRequest)
				return
			}
			f.From = t
		}
		if s := q.Get("to"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid to", http.StatusBadRequest)
				return
			}
			f.To = t
		}
		f.Caller = q.Get("caller")
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			f.Limit = n
		}

		items, err := calls.ListCalls(r.Context(), f)
		if err != nil {
			slog.Error("call log query failed", "error", err)
			http.Error(w, "query error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(CallsResponse{Items: items})
	}
}
