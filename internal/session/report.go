package session

import (
	"context"
	"errors"
	"time"

	"marta-relay/internal/metrics"
	"marta-relay/internal/models"
)

// finalize reports the call, then closes the model connection and the
// Twilio connection in that order. Reporting runs on a context detached
// from ctx so a shutting-down server still sends the SMS.
func (s *Session) finalize(ctx context.Context) {
	s.setState(Finalizing)
	s.log.Info("finalizing session", "reason", s.endReason, "transcript_lines", s.transcript.Lines())

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FinalizeTimeout)
	defer cancel()

	status, extracted := s.report(rctx)
	s.record(rctx, status, extracted)

	if s.model != nil {
		_ = s.model.Close()
	}
	s.closeTwilio()
	close(s.done)
	_ = s.readers.Wait()

	s.setState(Closed)
	metrics.SessionEnded(s.endReason)
	s.log.Info("session closed", "reason", s.endReason, "notification", string(status),
		"duration", time.Since(s.startedAt).Round(time.Millisecond))
}

// report runs extract then notify. Any failure on that path leads to
// exactly one raw-transcript fallback, whose own failure is only logged.
func (s *Session) report(ctx context.Context) (models.NotificationStatus, bool) {
	transcript := s.transcript.String()

	if !s.started && s.transcript.Empty() {
		s.log.Info("no stream was started and nothing was said, skipping notification")
		return models.NotificationSkipped, false
	}

	var ticket models.Ticket
	if s.transcript.Empty() {
		ticket = models.NoTranscriptionTicket(s.clock.IsNight)
		metrics.Extraction("empty")
	} else {
		t, err := s.deps.Extractor.Extract(ctx, transcript, s.clock.IsNight)
		if err != nil {
			metrics.Extraction("failure")
			s.log.Warn("ticket extraction failed, sending raw transcript", "err", err)
			return s.fallback(ctx, transcript), false
		}
		metrics.Extraction("success")
		ticket = t
	}

	if err := s.deps.Notifier.Notify(ctx, ticket, s.callSID, s.caller); err != nil {
		metrics.Notification("ticket", false)
		s.log.Warn("ticket notification failed, sending raw transcript", "err", err)
		return s.fallback(ctx, transcript), true
	}
	metrics.Notification("ticket", true)
	s.log.Info("ticket notification sent", "service", ticket.Service, "urgent", ticket.Urgent)
	return models.NotificationTicket, true
}

func (s *Session) fallback(ctx context.Context, transcript string) models.NotificationStatus {
	if err := s.deps.Notifier.NotifyRaw(ctx, transcript, s.callSID, s.caller); err != nil {
		metrics.Notification("fallback", false)
		s.log.Error("fallback notification failed, call not reported", "err", err)
		return models.NotificationFailed
	}
	metrics.Notification("fallback", true)
	s.log.Info("fallback notification sent")
	return models.NotificationFallback
}

// record writes the call log entry. Failures never affect the call.
func (s *Session) record(ctx context.Context, status models.NotificationStatus, extracted bool) {
	if s.deps.Recorder == nil || s.callSID == "" {
		return
	}

	rec := models.CallRecord{
		CallSID:            s.callSID,
		StartedAt:          s.startedAt,
		EndedAt:            time.Now(),
		IsNight:            s.clock.IsNight,
		DayPart:            string(s.clock.DayPart),
		TranscriptLines:    s.transcript.Lines(),
		EndReason:          s.endReason,
		ExtractionOK:       extracted,
		NotificationStatus: status,
	}
	if s.streamSID != "" {
		rec.StreamSID = &s.streamSID
	}
	if s.caller != "" {
		rec.CallerNumber = &s.caller
	}

	if err := s.deps.Recorder.RecordCall(ctx, rec); err != nil {
		if errors.Is(err, models.ErrDuplicateCall) {
			s.log.Debug("call already recorded")
			return
		}
		s.log.Warn("call record not written", "err", err)
	}
}
