package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"pnr_tracker/internal/domain/notification"
	"pnr_tracker/internal/domain/transport"
)

type fakeDialer struct {
	sent  []*gomail.Message
	err   error
	block chan struct{}
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.block != nil {
		<-d.block
	}
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSMTPTransport_Send(t *testing.T) {
	d := &fakeDialer{}
	tr := NewSMTPTransportWithDialer(d, "alerts@pnr.example")

	err := tr.Send(context.Background(), transport.Message{
		Channel:   notification.ChannelEmail,
		Recipient: "asha@example.com",
		Subject:   "PNR Update for 1234567890",
		Body:      "Dear Asha",
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"alerts@pnr.example"}, m.GetHeader("From"))
	assert.Equal(t, []string{"asha@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"PNR Update for 1234567890"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Dear Asha")
}

func TestSMTPTransport_Errors(t *testing.T) {
	tr := NewSMTPTransportWithDialer(&fakeDialer{err: errors.New("535 auth failed")}, "alerts@pnr.example")
	err := tr.Send(context.Background(), transport.Message{Recipient: "asha@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535 auth failed")

	err = tr.Send(context.Background(), transport.Message{})
	assert.EqualError(t, err, "email recipient is empty")
}

func TestSMTPTransport_HonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	tr := NewSMTPTransportWithDialer(&fakeDialer{block: block}, "alerts@pnr.example")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tr.Send(ctx, transport.Message{Recipient: "asha@example.com"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
