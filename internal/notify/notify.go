// Package notify formats tickets as SMS text and dispatches them to the
// configured dispatcher number.
package notify

import (
	"context"
	"errors"
	"fmt"

	"marta-relay/internal/models"
)

// ErrSend wraps every dispatch failure.
var ErrSend = errors.New("sms dispatch failed")

// Sender delivers one SMS.
type Sender interface {
	Send(ctx context.Context, from, to, body string) error
}

// Notifier sends to a fixed sender/recipient pair. Each method performs
// exactly one Send; retrying is the caller's decision.
type Notifier struct {
	sender Sender
	from   string
	to     string
}

func New(sender Sender, from, to string) *Notifier {
	return &Notifier{sender: sender, from: from, to: to}
}

// Notify sends the structured ticket.
func (n *Notifier) Notify(ctx context.Context, t models.Ticket, callSID, caller string) error {
	return n.send(ctx, FormatTicket(t, callSID, caller))
}

// NotifyRaw sends the unprocessed transcript.
func (n *Notifier) NotifyRaw(ctx context.Context, transcript, callSID, caller string) error {
	return n.send(ctx, FormatFallback(transcript, callSID, caller))
}

func (n *Notifier) send(ctx context.Context, body string) error {
	if err := n.sender.Send(ctx, n.from, n.to, body); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	return nil
}
