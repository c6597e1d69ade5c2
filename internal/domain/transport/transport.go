package transport

import (
	"context"

	"pnr_tracker/internal/domain/notification"
)

// Message is one outbound notification.
type Message struct {
	Channel   notification.Channel
	Recipient string
	Subject   string
	Body      string
}

// Transport delivers a message through one channel.
// It makes a single attempt and reports failure as an error; it does not retry.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Func adapts a plain function to Transport.
type Func func(ctx context.Context, msg Message) error

func (f Func) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
