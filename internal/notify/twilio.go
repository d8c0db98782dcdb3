package notify

import (
	"context"
	"log/slog"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// MaxSMSLength is the Twilio body limit in characters.
const MaxSMSLength = 1600

// MessageCreator is the subset of the Twilio v2010 API used for SMS.
type MessageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// TwilioSender sends SMS through the Twilio REST API.
type TwilioSender struct {
	api MessageCreator
}

func NewTwilioSender(accountSID, authToken string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api}
}

func NewTwilioSenderWith(api MessageCreator) *TwilioSender {
	return &TwilioSender{api: api}
}

// Send posts one message. The Twilio client has no context support, so a
// cancelled ctx abandons the wait but not the request in flight.
func (s *TwilioSender) Send(ctx context.Context, from, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &api.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(Truncate(body, MaxSMSLength))

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := s.api.CreateMessage(params)
		var sid string
		if err == nil && msg != nil && msg.Sid != nil {
			sid = *msg.Sid
		}
		done <- result{sid: sid, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		slog.Info("sms sent", "message_sid", r.sid, "to", to)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Truncate shortens s to at most limit characters, ending with an ellipsis
// when anything was cut.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 1 {
		return string(r[:limit])
	}
	return string(r[:limit-1]) + "…"
}
