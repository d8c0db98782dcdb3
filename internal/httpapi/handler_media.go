package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"marta-relay/internal/session"
)

// MediaServer runs one call over an accepted Media Streams connection.
type MediaServer interface {
	Serve(ctx context.Context, conn session.Conn) error
}

// MediaStreamHandler upgrades Twilio's request and blocks for the whole call.
func MediaStreamHandler(sessions MediaServer, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("media stream upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		if err := sessions.Serve(r.Context(), conn); err != nil {
			slog.Error("media session failed", "remote", r.RemoteAddr, "error", err)
		}
	}
}
