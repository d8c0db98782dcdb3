// Package metrics holds the process-wide Prometheus collectors. No
// collector carries per-call labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Audio directions for AudioFrame.
const (
	DirectionInbound  = "caller_to_model"
	DirectionOutbound = "model_to_caller"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marta_sessions_active",
		Help: "Call sessions currently running",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marta_sessions_total",
		Help: "Finished call sessions by end reason",
	}, []string{"reason"}) // reason=stop|caller_closed|model_lost|shutdown|dial_failed

	greetingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marta_greetings_total",
		Help: "Greeting instructions sent to the realtime model",
	})

	readyFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marta_ready_fallback_total",
		Help: "Sessions where the readiness fallback timer marked the model configured",
	})

	audioFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marta_audio_frames_total",
		Help: "Audio frames relayed by direction",
	}, []string{"direction"})

	droppedDeltasTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marta_dropped_audio_deltas_total",
		Help: "Model audio deltas dropped because the stream id was not yet known",
	})

	malformedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marta_malformed_messages_total",
		Help: "Undecodable messages dropped by source",
	}, []string{"source"}) // source=twilio|realtime

	modelDisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marta_model_disconnects_total",
		Help: "Unsolicited realtime model connection losses",
	})

	modelReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marta_model_reconnects_total",
		Help: "Realtime model reconnect attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	extractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marta_extractions_total",
		Help: "Ticket extractions by outcome",
	}, []string{"outcome"}) // outcome=success|failure|empty

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marta_notifications_total",
		Help: "SMS notifications by kind and outcome",
	}, []string{"kind", "outcome"}) // kind=ticket|fallback outcome=success|failure
)

func SessionStarted() { sessionsActive.Inc() }

// SessionEnded decrements the active gauge and counts the end reason.
func SessionEnded(reason string) {
	sessionsActive.Dec()
	sessionsTotal.WithLabelValues(reason).Inc()
}

func Greeting() { greetingsTotal.Inc() }

func ReadyFallback() { readyFallbackTotal.Inc() }

func AudioFrame(direction string) { audioFramesTotal.WithLabelValues(direction).Inc() }

func DroppedDelta() { droppedDeltasTotal.Inc() }

func Malformed(source string) { malformedTotal.WithLabelValues(source).Inc() }

func ModelDisconnect() { modelDisconnectsTotal.Inc() }

func ModelReconnect(ok bool) { modelReconnectsTotal.WithLabelValues(outcome(ok)).Inc() }

func Extraction(outcomeLabel string) { extractionsTotal.WithLabelValues(outcomeLabel).Inc() }

func Notification(kind string, ok bool) {
	notificationsTotal.WithLabelValues(kind, outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
