// Package mediastream models the Twilio Media Streams WebSocket protocol:
// the JSON events Twilio sends for a call and the ones sent back to play
// audio.
package mediastream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
	EventClear     = "clear"
	EventDTMF      = "dtmf"
)

// Custom parameter names set by the inbound webhook on <Stream>.
const (
	ParamCallSID      = "callSid"
	ParamCallerNumber = "callerNumber"
)

// TrackInbound is the caller's leg.
const TrackInbound = "inbound"

var ErrMalformed = errors.New("malformed media stream message")

type Message struct {
	Event          string `json:"event"`
	SequenceNumber string `json:"sequenceNumber,omitempty"`
	StreamSID      string `json:"streamSid,omitempty"`
	Start          *Start `json:"start,omitempty"`
	Media          *Media `json:"media,omitempty"`
	Mark           *Mark  `json:"mark,omitempty"`
	Stop           *Stop  `json:"stop,omitempty"`
}

type Start struct {
	StreamSID        string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type Media struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"` // base64 mu-law
}

type Mark struct {
	Name string `json:"name"`
}

type Stop struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// Decode parses one frame. Frames without an event name, or whose event is
// missing its body, are rejected with ErrMalformed.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case msg.Event == "":
		return Message{}, fmt.Errorf("%w: missing event", ErrMalformed)
	case msg.Event == EventStart && msg.Start == nil:
		return Message{}, fmt.Errorf("%w: start without body", ErrMalformed)
	case msg.Event == EventMedia && (msg.Media == nil || msg.Media.Payload == ""):
		return Message{}, fmt.Errorf("%w: media without payload", ErrMalformed)
	}
	if msg.Event == EventStart && msg.StreamSID == "" {
		msg.StreamSID = msg.Start.StreamSID
	}
	return msg, nil
}

// IsCallerAudio reports whether a media frame carries the caller's voice.
// Frames without a track come from single-track streams and count as inbound.
func (m Message) IsCallerAudio() bool {
	return m.Event == EventMedia && m.Media != nil && (m.Media.Track == "" || m.Media.Track == TrackInbound)
}

// Param returns a custom parameter from the start event.
func (m Message) Param(name string) string {
	if m.Start == nil || m.Start.CustomParameters == nil {
		return ""
	}
	return m.Start.CustomParameters[name]
}

// CallSID prefers the start body over the custom parameter.
func (m Message) CallSID() string {
	if m.Start != nil && m.Start.CallSID != "" {
		return m.Start.CallSID
	}
	if m.Stop != nil && m.Stop.CallSID != "" {
		return m.Stop.CallSID
	}
	return m.Param(ParamCallSID)
}

// MediaFrame builds the outbound frame that plays payload on streamSID.
func MediaFrame(streamSID, payload string) Message {
	return Message{Event: EventMedia, StreamSID: streamSID, Media: &Media{Payload: payload}}
}

// ClearFrame flushes audio Twilio has buffered but not yet played.
func ClearFrame(streamSID string) Message {
	return Message{Event: EventClear, StreamSID: streamSID}
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}
