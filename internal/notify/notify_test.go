package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	api "github.com/twilio/twilio-go/rest/api/v2010"

	"marta-relay/internal/models"
)

func TestFormatTicket(t *testing.T) {
	t.Parallel()

	ticket := models.Ticket{
		Name:                   "Ana",
		Phone:                  "600111222",
		Service:                "fontanería",
		Fault:                  "fuga bajo el fregadero",
		Urgent:                 models.Yes,
		NightSurchargeAccepted: models.NotApplicable,
	}

	got := FormatTicket(ticket, "CA1", "+34600111222")
	want := strings.Join([]string{
		"NUEVO AVISO - Marta",
		"Nombre: Ana",
		"Teléfono: 600111222",
		"Llamante: +34600111222",
		"Dirección: -",
		"Zona: -",
		"Servicio: fontanería",
		"Avería: fuga bajo el fregadero",
		"Urgente: sí",
		"Nocturno: n-a",
		"Notas: -",
		"CallSid: CA1",
	}, "\n")
	if got != want {
		t.Fatalf("FormatTicket:\n%s\nwant:\n%s", got, want)
	}

	if again := FormatTicket(ticket, "CA1", "+34600111222"); again != got {
		t.Fatalf("formatting is not deterministic")
	}
}

func TestFormatTicket_NoCallSID(t *testing.T) {
	t.Parallel()

	got := FormatTicket(models.Ticket{}, "", "")
	if strings.Contains(got, "CallSid") {
		t.Fatalf("unexpected CallSid line: %q", got)
	}
	if !strings.HasSuffix(got, "Notas: -") {
		t.Fatalf("FormatTicket=%q", got)
	}
}

func TestFormatFallback(t *testing.T) {
	t.Parallel()

	transcript := "CLIENT: Necesito un fontanero\nCLIENT: es urgente\n"
	got := FormatFallback(transcript, "CA1", "")
	if !strings.Contains(got, transcript) {
		t.Fatalf("fallback must carry the raw transcript: %q", got)
	}
	if !strings.HasPrefix(got, fallbackHeader+"\nCallSid: CA1\nLlamante: -\n") {
		t.Fatalf("call id and caller must lead the fallback: %q", got)
	}
	if !strings.Contains(got, "Llamante: -") {
		t.Fatalf("missing caller placeholder: %q", got)
	}

	empty := FormatFallback("", "CA2", "+34")
	if !strings.Contains(empty, "(vacía)") {
		t.Fatalf("empty transcript marker missing: %q", empty)
	}
}

func TestFormatFallback_LongTranscriptKeepsCallID(t *testing.T) {
	t.Parallel()

	transcript := strings.Repeat("CLIENT: vivo en la calle Mayor, número doce, tercero izquierda\n", 40)
	body := Truncate(FormatFallback(transcript, "CA1", "+34600111222"), MaxSMSLength)

	if n := utf8.RuneCountInString(body); n != MaxSMSLength {
		t.Fatalf("body has %d runes, want %d", n, MaxSMSLength)
	}
	for _, want := range []string{"CallSid: CA1", "Llamante: +34600111222", "CLIENT: vivo en la calle Mayor"} {
		if !strings.Contains(body, want) {
			t.Fatalf("truncated fallback lost %q", want)
		}
	}
}

type recordingSender struct {
	calls []string
	err   error
}

func (s *recordingSender) Send(_ context.Context, from, to, body string) error {
	s.calls = append(s.calls, from+"|"+to+"|"+body)
	return s.err
}

func TestNotifier(t *testing.T) {
	t.Parallel()

	s := &recordingSender{}
	n := New(s, "+34900", "+34600")

	if err := n.Notify(context.Background(), models.Ticket{Service: "fontanería"}, "CA1", ""); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.calls) != 1 || !strings.HasPrefix(s.calls[0], "+34900|+34600|") {
		t.Fatalf("calls=%q", s.calls)
	}
	if !strings.Contains(s.calls[0], "Servicio: fontanería") {
		t.Fatalf("body=%q", s.calls[0])
	}

	s.err = errors.New("twilio down")
	err := n.NotifyRaw(context.Background(), "CLIENT: hola\n", "CA1", "")
	if !errors.Is(err, ErrSend) {
		t.Fatalf("err=%v, want ErrSend", err)
	}
	if len(s.calls) != 2 {
		t.Fatalf("NotifyRaw must send exactly once, calls=%d", len(s.calls))
	}
}

type fakeMessages struct {
	params *api.CreateMessageParams
	err    error
}

func (f *fakeMessages) CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM1"
	return &api.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSender(t *testing.T) {
	t.Parallel()

	f := &fakeMessages{}
	s := NewTwilioSenderWith(f)

	long := strings.Repeat("ñ", MaxSMSLength+10)
	if err := s.Send(context.Background(), "+34900", "+34600", long); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if *f.params.From != "+34900" || *f.params.To != "+34600" {
		t.Fatalf("from/to=%q/%q", *f.params.From, *f.params.To)
	}
	if n := utf8.RuneCountInString(*f.params.Body); n != MaxSMSLength {
		t.Fatalf("body length=%d, want %d", n, MaxSMSLength)
	}
	if !strings.HasSuffix(*f.params.Body, "…") {
		t.Fatalf("truncated body must end with an ellipsis")
	}

	f.err = errors.New("status 401")
	if err := s.Send(context.Background(), "+34900", "+34600", "x"); err == nil {
		t.Fatalf("expected error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, "a", "b", "c"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"hola", 10, "hola"},
		{"hola", 4, "hola"},
		{"holaquetal", 5, "hola…"},
		{"áéíóú", 3, "áé…"},
	}
	for _, tc := range tests {
		if got := Truncate(tc.in, tc.limit); got != tc.want {
			t.Fatalf("Truncate(%q,%d)=%q want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}
