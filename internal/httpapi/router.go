package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marta-relay/internal/config"
)

// Deps wires the HTTP surface. DB and Calls are nil when no database is
// configured.
type Deps struct {
	Config   *config.Config
	DB       Pinger
	Calls    CallLister
	Sessions MediaServer
	Version  string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggingMiddleware)
	r.Use(RecoverMiddleware)

	r.Get("/health", HealthHandler(d.DB))
	r.Get("/version", VersionHandler(d.Version))
	r.Handle("/metrics", promhttp.Handler())

	// Twilio endpoints
	r.With(httprate.LimitByIP(d.Config.Webhook.RequestsPerMinute, time.Minute)).
		Post("/twilio/voice", VoiceHandler(d.Config.PublicURL))
	r.Get("/media-stream", MediaStreamHandler(d.Sessions, &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}))

	// External APIs
	r.Route("/api", func(api chi.Router) {
		api.With(APIKeyAuth(d.Config.APIKeys)).Get("/calls", CallsQueryHandler(d.Calls))
	})

	return r
}
