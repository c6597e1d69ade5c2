package main

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pnr_tracker/internal/domain/notification"
	"pnr_tracker/internal/infra/config"
)

func TestBuild_MemoryStore(t *testing.T) {
	cfg, err := config.FromEnv(func(key string) string {
		return map[string]string{
			"STORE_DRIVER":       "memory",
			"RAPIDAPI_KEY":       "test",
			"SMTP_HOST":          "smtp.example.com",
			"SMTP_FROM":          "alerts@example.com",
			"TWILIO_ACCOUNT_SID": "AC1",
			"TWILIO_AUTH_TOKEN":  "tok",
			"TWILIO_FROM_NUMBER": "+15550000",
		}[key]
	})
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := build(context.Background(), cfg, logrus.NewEntry(log))
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.reconciler)
	assert.NotNil(t, c.subscriptions)
	assert.NotNil(t, c.scheduler)
	assert.True(t, c.dispatcher.Supports(notification.ChannelEmail))
	assert.True(t, c.dispatcher.Supports(notification.ChannelSMS))
	assert.False(t, c.dispatcher.Supports(notification.ChannelTelegram))

	summary, ran := c.scheduler.RunPass(context.Background())
	assert.True(t, ran)
	assert.Zero(t, summary.Total)
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	names := []string{}
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "reconcile"}, names)
}
