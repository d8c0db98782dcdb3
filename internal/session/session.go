// Package session relays one phone call between Twilio Media Streams and
// the OpenAI Realtime API and reports the call when it ends.
//
// Each Session is an actor: Run owns every piece of call state and is the
// only writer to both WebSockets. Reader goroutines hand raw frames to Run
// over a single channel, so frames from one connection keep their order.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"marta-relay/internal/clock"
	"marta-relay/internal/mediastream"
	"marta-relay/internal/metrics"
	"marta-relay/internal/models"
	"marta-relay/internal/prompt"
	"marta-relay/internal/realtime"
)

// Conn is a message-oriented connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens a connection to the realtime model.
type DialFunc func(ctx context.Context) (Conn, error)

type Extractor interface {
	Extract(ctx context.Context, transcript string, night bool) (models.Ticket, error)
}

type Notifier interface {
	Notify(ctx context.Context, t models.Ticket, callSID, caller string) error
	NotifyRaw(ctx context.Context, transcript, callSID, caller string) error
}

// Recorder persists call metadata. Optional.
type Recorder interface {
	RecordCall(ctx context.Context, rec models.CallRecord) error
}

// Model-loss policies.
const (
	OnModelLossHangup        = "hangup"
	OnModelLossReconnectOnce = "reconnect_once"
)

// End reasons, also used as metric labels.
const (
	reasonStop         = "stop"
	reasonCallerClosed = "caller_closed"
	reasonModelLost    = "model_lost"
	reasonShutdown     = "shutdown"
	reasonDialFailed   = "dial_failed"
)

type source int

const (
	sourceTwilio source = iota
	sourceModel
)

func (s source) String() string {
	if s == sourceTwilio {
		return "twilio"
	}
	return "realtime"
}

// frame is one read result. A non-nil err means the connection is gone.
type frame struct {
	src  source
	gen  int
	data []byte
	err  error
}

type Session struct {
	id    string
	cfg   Config
	deps  Deps
	turns TurnStrategy
	log   *slog.Logger

	twilio   Conn
	model    Conn
	modelGen int

	frames  chan frame
	done    chan struct{}
	readers errgroup.Group

	closeTwilioOnce sync.Once
	state           atomic.Int32

	// Owned by Run.
	clock       clock.Context
	gate        readinessGate
	greeted     bool
	greetQueued bool
	started     bool
	streamSID   string
	callSID     string
	caller      string
	transcript  models.Transcript
	reconnected bool
	endReason   string
	startedAt   time.Time

	// trace, when set, is called after every handled input. Tests use it to
	// synchronise with the loop.
	trace func(what string)
}

func (s *Session) ID() string { return s.id }

// State is safe to call from any goroutine.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	if s.State() == st {
		return
	}
	s.state.Store(int32(st))
	s.log.Debug("session state", "state", st.String())
}

func newSession(cfg Config, deps Deps, turns TurnStrategy, twilio Conn) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		turns:  turns,
		log:    deps.Logger.With("session_id", id),
		twilio: twilio,
		frames: make(chan frame),
		done:   make(chan struct{}),
	}
}

// Run relays the call until Twilio stops the stream, either connection is
// lost for good, or ctx is cancelled, then reports the call and closes both
// connections. It returns an error only when the model could not be reached.
func (s *Session) Run(ctx context.Context) error {
	metrics.SessionStarted()
	s.startedAt = time.Now()
	s.clock = s.deps.Clock()
	s.log.Info("session started", "is_night", s.clock.IsNight, "day_part", string(s.clock.DayPart), "turn_mode", s.turns.Name())

	s.readers.Go(func() error {
		s.read(s.twilio, sourceTwilio, 0)
		return nil
	})

	model, err := s.deps.Dial(ctx)
	if err != nil {
		s.log.Error("realtime dial failed", "err", err)
		s.awaitStart(ctx)
		s.endReason = reasonDialFailed
		s.closeTwilio()
		s.finalize(ctx)
		return fmt.Errorf("dial realtime model: %w", err)
	}
	s.attachModel(model)
	s.setState(AwaitingReadiness)

	readyFallback := time.NewTimer(s.cfg.ReadyFallback)
	defer readyFallback.Stop()
	var redial <-chan time.Time

	for s.endReason == "" {
		select {
		case f := <-s.frames:
			if f.src == sourceTwilio {
				s.handleTwilio(f)
			} else {
				redial = s.handleModel(f, redial)
			}

		case <-readyFallback.C:
			if !s.gate.configured {
				s.log.Info("realtime session not confirmed, assuming configured")
				metrics.ReadyFallback()
			}
			s.markConfigured()
			s.emit("timer:ready_fallback")

		case <-redial:
			redial = nil
			s.reconnect(ctx)
			s.emit("timer:redial")

		case <-ctx.Done():
			s.endReason = reasonShutdown
			s.emit("ctx:done")
		}
	}

	s.finalize(ctx)
	return nil
}

// awaitStart handles Twilio frames until the start event arrives, the
// stream ends or StartWait elapses, so a call whose model never came up is
// still reported under its CallSid.
func (s *Session) awaitStart(ctx context.Context) {
	timer := time.NewTimer(s.cfg.StartWait)
	defer timer.Stop()
	for !s.started && s.endReason == "" {
		select {
		case f := <-s.frames:
			s.handleTwilio(f)
		case <-timer.C:
			s.log.Warn("no start event before reporting", "waited", s.cfg.StartWait)
			return
		case <-ctx.Done():
			return
		}
	}
}

// read forwards frames from conn until it fails or the session is done.
func (s *Session) read(conn Conn, src source, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		select {
		case s.frames <- frame{src: src, gen: gen, data: data, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) attachModel(conn Conn) {
	s.modelGen++
	s.model = conn
	gen := s.modelGen
	s.readers.Go(func() error {
		s.read(conn, sourceModel, gen)
		return nil
	})
	s.sendModel(realtime.NewSessionUpdate(realtime.SessionConfig{
		Instructions:  prompt.Instructions(s.cfg.BusinessName, s.clock),
		Voice:         s.cfg.Voice,
		Language:      s.cfg.Language,
		TurnDetection: s.turns.TurnDetection(),
	}))
}

func (s *Session) handleTwilio(f frame) {
	if f.err != nil {
		if s.endReason == "" {
			s.log.Info("twilio connection closed", "err", f.err)
			s.endReason = reasonCallerClosed
		}
		s.emit("twilio:closed")
		return
	}

	msg, err := mediastream.Decode(f.data)
	if err != nil {
		metrics.Malformed(sourceTwilio.String())
		s.log.Debug("dropping twilio frame", "err", err)
		s.emit("twilio:malformed")
		return
	}

	switch msg.Event {
	case mediastream.EventStart:
		s.onStart(msg)
	case mediastream.EventMedia:
		if msg.IsCallerAudio() && s.model != nil {
			s.sendModel(realtime.NewInputAudioAppend(msg.Media.Payload))
			metrics.AudioFrame(metrics.DirectionInbound)
		}
	case mediastream.EventStop:
		if s.callSID == "" {
			s.callSID = msg.CallSID()
		}
		s.log.Info("twilio stream stopped")
		s.endReason = reasonStop
	}
	s.emit("twilio:" + msg.Event)
}

func (s *Session) onStart(msg mediastream.Message) {
	if s.started {
		s.log.Warn("duplicate start event ignored", "stream_sid", msg.StreamSID)
		return
	}
	s.started = true
	s.streamSID = msg.StreamSID
	s.callSID = msg.CallSID()
	s.caller = msg.Param(mediastream.ParamCallerNumber)
	s.log = s.log.With("call_sid", s.callSID, "stream_sid", s.streamSID)
	s.log.Info("twilio stream started", "caller", s.caller)

	if s.gate.markStreaming() {
		s.greet()
	}
}

// handleModel processes one realtime frame and returns the redial timer.
func (s *Session) handleModel(f frame, redial <-chan time.Time) <-chan time.Time {
	if f.gen != s.modelGen {
		return redial
	}
	if f.err != nil {
		redial = s.onModelLost(f.err, redial)
		s.emit("realtime:closed")
		return redial
	}

	ev, err := realtime.Decode(f.data)
	if err != nil {
		metrics.Malformed(sourceModel.String())
		s.log.Debug("dropping realtime frame", "err", err)
		s.emit("realtime:malformed")
		return redial
	}

	switch ev.Type {
	case realtime.TypeSessionCreated, realtime.TypeSessionUpdated:
		s.markConfigured()

	case realtime.TypeResponseAudioDelta:
		if s.streamSID == "" {
			metrics.DroppedDelta()
			break
		}
		if ev.Delta != "" {
			s.sendTwilio(mediastream.MediaFrame(s.streamSID, ev.Delta))
			metrics.AudioFrame(metrics.DirectionOutbound)
		}

	case realtime.TypeTranscriptionCompleted:
		if !s.transcript.AppendClient(ev.Transcript) {
			break
		}
		s.log.Debug("caller utterance transcribed", "lines", s.transcript.Lines())
		if s.greeted && s.turns.RespondAfterTranscript() {
			s.sendModel(realtime.NewResponseCreate(""))
		}

	case realtime.TypeTranscriptionFailed:
		s.log.Warn("caller transcription failed", "item_id", ev.ItemID, "err", apiErr(ev))

	case realtime.TypeSpeechStarted:
		if s.turns.ClearOnSpeech() && s.streamSID != "" {
			s.sendTwilio(mediastream.ClearFrame(s.streamSID))
		}

	case realtime.TypeError:
		s.log.Warn("realtime error event", "err", apiErr(ev))
	}
	s.emit("realtime:" + ev.Type)
	return redial
}

func (s *Session) onModelLost(cause error, redial <-chan time.Time) <-chan time.Time {
	metrics.ModelDisconnect()
	s.log.Warn("realtime connection lost", "err", cause)
	_ = s.model.Close()
	s.model = nil

	if s.cfg.OnModelLoss == OnModelLossReconnectOnce && !s.reconnected {
		s.reconnected = true
		s.log.Info("reconnecting to realtime model", "delay", s.cfg.ReconnectDelay)
		return time.After(s.cfg.ReconnectDelay)
	}

	s.endReason = reasonModelLost
	s.closeTwilio()
	return redial
}

func (s *Session) reconnect(ctx context.Context) {
	conn, err := s.deps.Dial(ctx)
	if err != nil {
		metrics.ModelReconnect(false)
		s.log.Error("realtime reconnect failed", "err", err)
		s.endReason = reasonModelLost
		s.closeTwilio()
		return
	}
	metrics.ModelReconnect(true)
	s.attachModel(conn)
	s.log.Info("realtime model reconnected")
	if s.greetQueued {
		s.greet()
	}
}

func (s *Session) markConfigured() {
	if s.gate.markConfigured() {
		s.greet()
	}
}

// greet sends the opening instruction. Only the readiness gate calls it, so
// it runs at most once; a model that is down at that moment gets the
// greeting as soon as it is back.
func (s *Session) greet() {
	if s.greeted {
		return
	}
	if s.model == nil {
		s.greetQueued = true
		return
	}
	s.setState(Greeting)
	s.sendModel(realtime.NewResponseCreate(prompt.Greeting(s.cfg.BusinessName, s.clock)))
	s.greeted = true
	s.greetQueued = false
	metrics.Greeting()
	s.log.Info("greeting sent")
	s.setState(Conversing)
}

func (s *Session) sendModel(v any) {
	if s.model == nil {
		return
	}
	if err := writeJSON(s.model, v); err != nil {
		s.log.Debug("realtime write failed", "err", err)
	}
}

func (s *Session) sendTwilio(m mediastream.Message) {
	data, err := mediastream.Encode(m)
	if err != nil {
		s.log.Error("encode twilio frame", "err", err)
		return
	}
	if err := s.twilio.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Debug("twilio write failed", "err", err)
	}
}

func (s *Session) closeTwilio() {
	s.closeTwilioOnce.Do(func() {
		_ = s.twilio.Close()
	})
}

func (s *Session) emit(what string) {
	if s.trace != nil {
		s.trace(what)
	}
}

func writeJSON(conn Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func apiErr(ev realtime.ServerEvent) error {
	if ev.Error == nil {
		return errors.New("no error details")
	}
	return ev.Error
}
