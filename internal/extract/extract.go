// Package extract turns a call transcript into a service ticket with a
// single JSON-mode chat completion.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"marta-relay/internal/models"
)

var (
	// ErrExtraction wraps every failure to obtain a ticket: upstream errors,
	// empty completions and unparseable output.
	ErrExtraction = errors.New("ticket extraction failed")
	// ErrNoJSONObject is returned when a completion has no balanced {...}.
	ErrNoJSONObject = errors.New("no json object in completion")
)

// ChatCompleter is the subset of *openai.Client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Extractor struct {
	client ChatCompleter
	model  string
}

func New(client ChatCompleter, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// NewOpenAI builds an Extractor on the OpenAI API. An empty baseURL keeps
// the library default.
func NewOpenAI(apiKey, baseURL, model string, httpClient *http.Client) *Extractor {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return New(openai.NewClientWithConfig(cfg), model)
}

// Extract returns the ticket for transcript. A blank transcript yields
// models.NoTranscriptionTicket without contacting the endpoint.
func (e *Extractor) Extract(ctx context.Context, transcript string, night bool) (models.Ticket, error) {
	if strings.TrimSpace(transcript) == "" {
		return models.NoTranscriptionTicket(night), nil
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(transcript, night)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return models.Ticket{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if len(resp.Choices) == 0 {
		return models.Ticket{}, fmt.Errorf("%w: empty completion", ErrExtraction)
	}

	content := resp.Choices[0].Message.Content
	ticket, err := ParseTicket(content)
	if err != nil {
		slog.Debug("unparseable extraction output", "content", content)
		return models.Ticket{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return ticket.Normalize(night), nil
}

// ParseTicket reads the outermost JSON object in s. Values that are not
// strings (booleans, numbers) are converted rather than rejected.
func ParseTicket(s string) (models.Ticket, error) {
	obj, err := ExtractJSONObject(s)
	if err != nil {
		return models.Ticket{}, err
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return models.Ticket{}, fmt.Errorf("decode ticket: %w", err)
	}

	return models.Ticket{
		Name:                   stringField(raw, "nombre"),
		Phone:                  stringField(raw, "telefono"),
		Address:                stringField(raw, "direccion"),
		Zone:                   stringField(raw, "zona"),
		Service:                stringField(raw, "servicio"),
		Fault:                  stringField(raw, "averia"),
		Urgent:                 stringField(raw, "urgente"),
		NightSurchargeAccepted: stringField(raw, "aceptoNocturno"),
		Notes:                  stringField(raw, "notas"),
	}, nil
}

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case bool:
		if v {
			return models.Yes
		}
		return models.No
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// ExtractJSONObject returns the first brace-delimited substring of s that
// is a complete JSON object. Braces inside JSON strings are ignored, and a
// balanced span that is not valid JSON (prose such as "{clave}") is skipped.
func ExtractJSONObject(s string) (string, error) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > 0 && json.Valid([]byte(s[start:end])) {
			return s[start:end], nil
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

// matchBrace returns the index just past the brace closing s[start], or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
