// Package realtime speaks the OpenAI Realtime WebSocket protocol: the
// client events the relay sends and the subset of server events it acts on.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client event types.
const (
	TypeSessionUpdate    = "session.update"
	TypeResponseCreate   = "response.create"
	TypeInputAudioAppend = "input_audio_buffer.append"
)

// Server event types.
const (
	TypeSessionCreated         = "session.created"
	TypeSessionUpdated         = "session.updated"
	TypeResponseAudioDelta     = "response.audio.delta"
	TypeTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	TypeTranscriptionFailed    = "conversation.item.input_audio_transcription.failed"
	TypeSpeechStarted          = "input_audio_buffer.speech_started"
	TypeError                  = "error"
)

// AudioFormatG711ULaw is the Twilio Media Streams codec.
const AudioFormatG711ULaw = "g711_ulaw"

var ErrMalformed = errors.New("malformed realtime event")

type SessionUpdate struct {
	Type    string  `json:"type"`
	Session Session `json:"session"`
}

type Session struct {
	Modalities              []string                 `json:"modalities"`
	Instructions            string                   `json:"instructions"`
	Voice                   string                   `json:"voice"`
	InputAudioFormat        string                   `json:"input_audio_format"`
	OutputAudioFormat       string                   `json:"output_audio_format"`
	InputAudioTranscription *InputAudioTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection           `json:"turn_detection"`
	Temperature             float64                  `json:"temperature,omitempty"`
}

type InputAudioTranscription struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    *bool   `json:"create_response,omitempty"`
	InterruptResponse *bool   `json:"interrupt_response,omitempty"`
}

type ResponseCreate struct {
	Type     string    `json:"type"`
	Response *Response `json:"response,omitempty"`
}

type Response struct {
	Instructions string   `json:"instructions,omitempty"`
	Modalities   []string `json:"modalities,omitempty"`
}

type InputAudioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// ServerEvent is the union of the server fields the relay reads.
type ServerEvent struct {
	Type       string    `json:"type"`
	EventID    string    `json:"event_id,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	Delta      string    `json:"delta,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Error      *APIError `json:"error,omitempty"`
}

type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("realtime %s (%s): %s", e.Type, e.Code, e.Message)
}

// SessionConfig is the per-call session negotiated right after connecting.
type SessionConfig struct {
	Instructions  string
	Voice         string
	Language      string
	TurnDetection *TurnDetection
}

func NewSessionUpdate(c SessionConfig) SessionUpdate {
	return SessionUpdate{
		Type: TypeSessionUpdate,
		Session: Session{
			Modalities:        []string{"text", "audio"},
			Instructions:      c.Instructions,
			Voice:             c.Voice,
			InputAudioFormat:  AudioFormatG711ULaw,
			OutputAudioFormat: AudioFormatG711ULaw,
			InputAudioTranscription: &InputAudioTranscription{
				Model:    "whisper-1",
				Language: c.Language,
			},
			TurnDetection: c.TurnDetection,
			Temperature:   0.7,
		},
	}
}

// NewResponseCreate asks the model to speak. Empty instructions let it use
// the session instructions.
func NewResponseCreate(instructions string) ResponseCreate {
	ev := ResponseCreate{Type: TypeResponseCreate}
	if instructions != "" {
		ev.Response = &Response{Instructions: instructions}
	}
	return ev
}

func NewInputAudioAppend(payload string) InputAudioAppend {
	return InputAudioAppend{Type: TypeInputAudioAppend, Audio: payload}
}

func Decode(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ServerEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Type == "" {
		return ServerEvent{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return ev, nil
}
