package session

import (
	"fmt"

	"marta-relay/internal/realtime"
)

// Turn-taking modes.
const (
	TurnModeServerVAD = "server_vad"
	TurnModeManual    = "manual"
)

// TurnStrategy decides who drives conversation turns once the greeting is out.
type TurnStrategy interface {
	Name() string
	// TurnDetection is sent in every session.update.
	TurnDetection() *realtime.TurnDetection
	// RespondAfterTranscript reports whether each completed caller
	// transcription must be followed by an explicit response.create.
	RespondAfterTranscript() bool
	// ClearOnSpeech reports whether caller speech flushes queued playback.
	ClearOnSpeech() bool
}

func NewTurnStrategy(mode string) (TurnStrategy, error) {
	switch mode {
	case "", TurnModeServerVAD:
		return serverVAD{}, nil
	case TurnModeManual:
		return manualTurns{}, nil
	default:
		return nil, fmt.Errorf("unknown turn mode %q", mode)
	}
}

// serverVAD lets the model's voice activity detection open every turn and
// interrupt itself when the caller barges in.
type serverVAD struct{}

func (serverVAD) Name() string { return TurnModeServerVAD }

func (serverVAD) TurnDetection() *realtime.TurnDetection {
	return &realtime.TurnDetection{
		Type:              "server_vad",
		Threshold:         0.5,
		PrefixPaddingMS:   300,
		SilenceDurationMS: 500,
	}
}

func (serverVAD) RespondAfterTranscript() bool { return false }
func (serverVAD) ClearOnSpeech() bool          { return true }

// manualTurns keeps VAD for segmentation only; the session asks for each
// reply after the caller's words are transcribed.
type manualTurns struct{}

func (manualTurns) Name() string { return TurnModeManual }

func (manualTurns) TurnDetection() *realtime.TurnDetection {
	off := false
	return &realtime.TurnDetection{
		Type:              "server_vad",
		Threshold:         0.5,
		PrefixPaddingMS:   300,
		SilenceDurationMS: 700,
		CreateResponse:    &off,
		InterruptResponse: &off,
	}
}

func (manualTurns) RespondAfterTranscript() bool { return true }
func (manualTurns) ClearOnSpeech() bool          { return false }
