package sms

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"pnr_tracker/internal/domain/transport"
)

// MessageCreator is satisfied by the Twilio REST API service.
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioTransport sends SMS through the Twilio Messages API.
type TwilioTransport struct {
	api  MessageCreator
	from string
}

func NewTwilioTransport(accountSID, authToken, from string) *TwilioTransport {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return NewTwilioTransportWithAPI(client.Api, from)
}

func NewTwilioTransportWithAPI(api MessageCreator, from string) *TwilioTransport {
	return &TwilioTransport{api: api, from: from}
}

func (t *TwilioTransport) Send(ctx context.Context, msg transport.Message) error {
	if msg.Recipient == "" {
		return fmt.Errorf("sms recipient is empty")
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(msg.Recipient)
	params.SetFrom(t.from)
	params.SetBody(smsBody(msg))

	type result struct {
		resp *openapi.ApiV2010Message
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := t.api.CreateMessage(params)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("failed to send sms to %s: %w", msg.Recipient, r.err)
		}
		if r.resp != nil && r.resp.ErrorMessage != nil && *r.resp.ErrorMessage != "" {
			return fmt.Errorf("twilio rejected sms to %s: %s", msg.Recipient, *r.resp.ErrorMessage)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sending sms to %s: %w", msg.Recipient, ctx.Err())
	}
}

// smsBody keeps the subject as the first line; the JSON details do not belong in a text.
func smsBody(msg transport.Message) string {
	if msg.Subject == "" {
		return msg.Body
	}
	return msg.Subject + "\n" + firstParagraphs(msg.Body, 2)
}

func firstParagraphs(body string, n int) string {
	count := 0
	for i := 0; i+1 < len(body); i++ {
		if body[i] == '\n' && body[i+1] == '\n' {
			count++
			if count == n {
				return body[:i]
			}
		}
	}
	return body
}
