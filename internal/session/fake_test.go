package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"marta-relay/internal/clock"
	"marta-relay/internal/models"
)

const waitTimeout = 2 * time.Second

var errConnClosed = errors.New("use of closed connection")

// fakeConn is an in-memory WebSocket. Tests push frames the session will
// read and observe frames the session writes.
type fakeConn struct {
	in     chan []byte
	writes chan []byte

	mu      sync.Mutex
	written [][]byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 64),
		writes: make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return 1, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	cp := append([]byte(nil), data...)
	c.mu.Lock()
	c.written = append(c.written, cp)
	c.mu.Unlock()
	select {
	case c.writes <- cp:
	default:
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) push(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	c.in <- data
}

// next returns the next written frame whose key field equals value,
// skipping any others.
func (c *fakeConn) next(t *testing.T, key, value string) map[string]any {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case data := <-c.writes:
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("written frame is not json: %v", err)
			}
			if m[key] == value {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s=%s", key, value)
			return nil
		}
	}
}

// count returns how many written frames have key == value.
func (c *fakeConn) count(key, value string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, data := range c.written {
		var m map[string]any
		if json.Unmarshal(data, &m) == nil && m[key] == value {
			n++
		}
	}
	return n
}

func (c *fakeConn) all(key, value string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, data := range c.written {
		var m map[string]any
		if json.Unmarshal(data, &m) == nil && m[key] == value {
			out = append(out, m)
		}
	}
	return out
}

// Twilio frames.

func startFrame(streamSID, callSID, caller string) map[string]any {
	return map[string]any{
		"event":     "start",
		"streamSid": streamSID,
		"start": map[string]any{
			"streamSid": streamSID,
			"callSid":   callSID,
			"tracks":    []string{"inbound"},
			"mediaFormat": map[string]any{
				"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1,
			},
			"customParameters": map[string]string{
				"callSid":      callSID,
				"callerNumber": caller,
			},
		},
	}
}

func mediaFrame(payload string) map[string]any {
	return map[string]any{
		"event": "media",
		"media": map[string]any{"track": "inbound", "payload": payload},
	}
}

func stopFrame(callSID string) map[string]any {
	return map[string]any{"event": "stop", "stop": map[string]any{"callSid": callSID}}
}

// Realtime frames.

func modelEvent(typ string) map[string]any { return map[string]any{"type": typ} }

func transcriptionFrame(text string) map[string]any {
	return map[string]any{
		"type":       "conversation.item.input_audio_transcription.completed",
		"item_id":    "item_1",
		"transcript": text,
	}
}

func deltaFrame(payload string) map[string]any {
	return map[string]any{"type": "response.audio.delta", "delta": payload}
}

// Collaborators.

type fakeExtractor struct {
	mu          sync.Mutex
	transcripts []string
	ticket      models.Ticket
	err         error
}

func (e *fakeExtractor) Extract(_ context.Context, transcript string, night bool) (models.Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transcripts = append(e.transcripts, transcript)
	if e.err != nil {
		return models.Ticket{}, e.err
	}
	return e.ticket.Normalize(night), nil
}

func (e *fakeExtractor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.transcripts...)
}

// recordingSender satisfies notify.Sender.
type recordingSender struct {
	mu     sync.Mutex
	bodies []string
	fail   int // fail the first n sends
}

func (s *recordingSender) Send(_ context.Context, _, _, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, body)
	if len(s.bodies) <= s.fail {
		return fmt.Errorf("sms gateway unavailable (attempt %d)", len(s.bodies))
	}
	return nil
}

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...)
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []models.CallRecord
}

func (r *fakeRecorder) RecordCall(_ context.Context, rec models.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// dialer hands out the given connections in order, then fails.
type dialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

func (d *dialer) dial(context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("realtime unavailable")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

// tracer records what the loop handled so tests can wait for it.
type tracer struct {
	ch chan string
}

func newTracer() *tracer { return &tracer{ch: make(chan string, 1024)} }

func (tr *tracer) record(what string) {
	select {
	case tr.ch <- what:
	default:
	}
}

func (tr *tracer) wait(t *testing.T, what string) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case got := <-tr.ch:
			if got == what {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", what)
		}
	}
}

type harness struct {
	twilio    *fakeConn
	models    []*fakeConn
	dialer    *dialer
	extractor *fakeExtractor
	extract   Extractor
	sender    *recordingSender
	recorder  *fakeRecorder
	trace     *tracer
	session   *Session
	done      chan error
}

type harnessOption func(*Config, *harness)

func withConfig(fn func(*Config)) harnessOption {
	return func(c *Config, _ *harness) { fn(c) }
}

func withExtractor(e Extractor) harnessOption {
	return func(_ *Config, h *harness) { h.extract = e }
}

func withModels(n int) harnessOption {
	return func(_ *Config, h *harness) {
		h.models = nil
		for i := 0; i < n; i++ {
			h.models = append(h.models, newFakeConn())
		}
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		twilio:    newFakeConn(),
		models:    []*fakeConn{newFakeConn()},
		extractor: &fakeExtractor{ticket: models.Ticket{Service: "fontanería"}},
		sender:    &recordingSender{},
		recorder:  &fakeRecorder{},
		trace:     newTracer(),
		done:      make(chan error, 1),
	}
	h.extract = h.extractor
	cfg := Config{
		BusinessName:    "Reparaciones Test",
		Voice:           "shimmer",
		ReadyFallback:   time.Hour,
		ReconnectDelay:  10 * time.Millisecond,
		FinalizeTimeout: time.Second,
		StartWait:       100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg, h)
	}
	h.dialer = &dialer{conns: append([]*fakeConn(nil), h.models...)}

	f, err := NewFactory(cfg, Deps{
		Dial:      h.dialer.dial,
		Extractor: h.extract,
		Notifier:  notifierFor(h.sender),
		Recorder:  h.recorder,
		Clock: func() clock.Context {
			return clock.At(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	h.session = f.New(h.twilio)
	h.session.trace = h.trace.record
	return h
}

func (h *harness) run(ctx context.Context) {
	go func() { h.done <- h.session.Run(ctx) }()
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(waitTimeout):
		t.Fatalf("session did not finish")
		return nil
	}
}

func (h *harness) model() *fakeConn { return h.models[0] }

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
