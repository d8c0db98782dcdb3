package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissing is returned by Validate when a required setting is absent.
var ErrMissing = errors.New("missing required setting")

const (
	TurnModeServerVAD = "server_vad"
	TurnModeManual    = "manual"

	ModelLossHangup        = "hangup"
	ModelLossReconnectOnce = "reconnect_once"
)

type APIKey struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

type OpenAIConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	RealtimeURL     string        `yaml:"realtime_url"`
	RealtimeModel   string        `yaml:"realtime_model"`
	Voice           string        `yaml:"voice"`
	ExtractionModel string        `yaml:"extraction_model"`
	TurnMode        string        `yaml:"turn_mode"`
	ReadyFallback   time.Duration `yaml:"ready_fallback"`
	OnModelLoss     string        `yaml:"on_model_loss"`
	ReconnectDelay  time.Duration `yaml:"reconnect_delay"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	SMSFrom    string `yaml:"sms_from"`
	SMSTo      string `yaml:"sms_to"`
}

type WebhookConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	PublicURL       string        `yaml:"public_url"`
	LogLevel        string        `yaml:"log_level"`
	BusinessName    string        `yaml:"business_name"`
	TimeZone        string        `yaml:"time_zone"`
	DBDSN           string        `yaml:"db_dsn"`
	FinalizeTimeout time.Duration `yaml:"finalize_timeout"`
	APIKeys         []APIKey      `yaml:"api_keys"`
	OpenAI          OpenAIConfig  `yaml:"openai"`
	Twilio          TwilioConfig  `yaml:"twilio"`
	Webhook         WebhookConfig `yaml:"webhook"`
}

var knownVoices = map[string]bool{
	"alloy": true, "ash": true, "ballad": true, "coral": true,
	"echo": true, "sage": true, "shimmer": true, "verse": true,
}

// Load reads the YAML file at path (a missing file is not an error), then
// applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			dec := yaml.NewDecoder(f)
			if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	override(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	override(&c.OpenAI.RealtimeModel, "MARTA_REALTIME_MODEL")
	override(&c.OpenAI.Voice, "MARTA_VOICE")
	override(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	override(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	override(&c.Twilio.SMSFrom, "MARTA_SMS_FROM")
	override(&c.Twilio.SMSTo, "MARTA_SMS_TO")
	override(&c.PublicURL, "MARTA_PUBLIC_URL")
	override(&c.DBDSN, "MARTA_DB_DSN")
	override(&c.TimeZone, "MARTA_TIME_ZONE")
	override(&c.LogLevel, "MARTA_LOG_LEVEL")
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.ListenAddr = ":" + port
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BusinessName == "" {
		c.BusinessName = "Reparaciones Hogar"
	}
	if c.TimeZone == "" {
		c.TimeZone = "Europe/Madrid"
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = 30 * time.Second
	}
	if c.OpenAI.RealtimeURL == "" {
		c.OpenAI.RealtimeURL = "wss://api.openai.com/v1/realtime"
	}
	if c.OpenAI.RealtimeModel == "" {
		c.OpenAI.RealtimeModel = "gpt-4o-realtime-preview"
	}
	if c.OpenAI.Voice == "" {
		c.OpenAI.Voice = "shimmer"
	}
	if c.OpenAI.ExtractionModel == "" {
		c.OpenAI.ExtractionModel = "gpt-4o-mini"
	}
	if c.OpenAI.TurnMode == "" {
		c.OpenAI.TurnMode = TurnModeServerVAD
	}
	if c.OpenAI.ReadyFallback <= 0 {
		c.OpenAI.ReadyFallback = time.Second
	}
	if c.OpenAI.OnModelLoss == "" {
		c.OpenAI.OnModelLoss = ModelLossHangup
	}
	if c.OpenAI.ReconnectDelay <= 0 {
		c.OpenAI.ReconnectDelay = 500 * time.Millisecond
	}
	if c.Webhook.RequestsPerMinute <= 0 {
		c.Webhook.RequestsPerMinute = 60
	}
}

// Validate reports hard failures as an error wrapping ErrMissing (or a
// plain error for invalid values) and soft issues as warnings.
func (c *Config) Validate() (warnings []string, err error) {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"openai.api_key (OPENAI_API_KEY)", c.OpenAI.APIKey},
		{"twilio.account_sid (TWILIO_ACCOUNT_SID)", c.Twilio.AccountSID},
		{"twilio.auth_token (TWILIO_AUTH_TOKEN)", c.Twilio.AuthToken},
		{"twilio.sms_from (MARTA_SMS_FROM)", c.Twilio.SMSFrom},
		{"twilio.sms_to (MARTA_SMS_TO)", c.Twilio.SMSTo},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", c.TimeZone, err)
	}

	switch c.OpenAI.TurnMode {
	case TurnModeServerVAD, TurnModeManual:
	default:
		return nil, fmt.Errorf("openai.turn_mode must be one of %s|%s", TurnModeServerVAD, TurnModeManual)
	}

	switch c.OpenAI.OnModelLoss {
	case ModelLossHangup, ModelLossReconnectOnce:
	default:
		return nil, fmt.Errorf("openai.on_model_loss must be one of %s|%s", ModelLossHangup, ModelLossReconnectOnce)
	}

	if c.PublicURL == "" {
		warnings = append(warnings, "public_url not set; media stream URL will be derived from the request host")
	}
	if !knownVoices[c.OpenAI.Voice] {
		warnings = append(warnings, fmt.Sprintf("voice %q is not a known realtime voice", c.OpenAI.Voice))
	}
	if c.DBDSN == "" {
		warnings = append(warnings, "db_dsn not set; call log disabled")
	}
	if len(c.APIKeys) == 0 {
		warnings = append(warnings, "no api_keys configured; /api endpoints will reject every request")
	}
	return warnings, nil
}

func override(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}
