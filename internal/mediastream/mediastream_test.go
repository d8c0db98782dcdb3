package mediastream

import (
	"errors"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantEvent string
		wantErr   error
	}{
		{
			name:      "start",
			raw:       `{"event":"start","sequenceNumber":"1","start":{"streamSid":"SS1","callSid":"CA1","tracks":["inbound"],"mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1},"customParameters":{"callerNumber":"+34600111222"}},"streamSid":"SS1"}`,
			wantEvent: EventStart,
		},
		{
			name:      "media",
			raw:       `{"event":"media","streamSid":"SS1","media":{"track":"inbound","chunk":"2","timestamp":"5","payload":"AAAA"}}`,
			wantEvent: EventMedia,
		},
		{
			name:      "stop",
			raw:       `{"event":"stop","streamSid":"SS1","stop":{"accountSid":"AC1","callSid":"CA1"}}`,
			wantEvent: EventStop,
		},
		{name: "not json", raw: `{"event":`, wantErr: ErrMalformed},
		{name: "no event", raw: `{"streamSid":"SS1"}`, wantErr: ErrMalformed},
		{name: "start without body", raw: `{"event":"start"}`, wantErr: ErrMalformed},
		{name: "media without payload", raw: `{"event":"media","media":{"track":"inbound"}}`, wantErr: ErrMalformed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			msg, err := Decode([]byte(tc.raw))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err=%v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if msg.Event != tc.wantEvent {
				t.Fatalf("event=%q, want %q", msg.Event, tc.wantEvent)
			}
		})
	}
}

func TestStartAccessors(t *testing.T) {
	t.Parallel()

	msg, err := Decode([]byte(`{"event":"start","start":{"streamSid":"SS9","callSid":"","customParameters":{"callSid":"CA9","callerNumber":"+34600"}}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.StreamSID != "SS9" {
		t.Fatalf("StreamSID=%q, want SS9 copied from start body", msg.StreamSID)
	}
	if msg.CallSID() != "CA9" {
		t.Fatalf("CallSID=%q, want parameter fallback", msg.CallSID())
	}
	if msg.Param(ParamCallerNumber) != "+34600" {
		t.Fatalf("callerNumber=%q", msg.Param(ParamCallerNumber))
	}
}

func TestIsCallerAudio(t *testing.T) {
	t.Parallel()

	in := Message{Event: EventMedia, Media: &Media{Track: "inbound", Payload: "x"}}
	out := Message{Event: EventMedia, Media: &Media{Track: "outbound", Payload: "x"}}
	single := Message{Event: EventMedia, Media: &Media{Payload: "x"}}
	if !in.IsCallerAudio() || out.IsCallerAudio() || !single.IsCallerAudio() {
		t.Fatalf("unexpected track classification")
	}
}

func TestEncodeMediaFrame(t *testing.T) {
	t.Parallel()

	data, err := Encode(MediaFrame("SS1", "QUJD"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got := string(data)
	want := `{"event":"media","streamSid":"SS1","media":{"payload":"QUJD"}}`
	if got != want {
		t.Fatalf("frame=%s, want %s", got, want)
	}

	data, _ = Encode(ClearFrame("SS1"))
	if !strings.Contains(string(data), `"event":"clear"`) {
		t.Fatalf("clear frame=%s", data)
	}
}
