package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"pnr_tracker/internal/app"
	"pnr_tracker/internal/domain/notification"
	"pnr_tracker/internal/domain/subscription"
	"pnr_tracker/internal/domain/transport"
	"pnr_tracker/internal/domain/user"
	"pnr_tracker/internal/infra/config"
	idb "pnr_tracker/internal/infra/database"
	"pnr_tracker/internal/infra/email"
	"pnr_tracker/internal/infra/lock"
	"pnr_tracker/internal/infra/memory"
	"pnr_tracker/internal/infra/metrics"
	"pnr_tracker/internal/infra/mongostore"
	"pnr_tracker/internal/infra/pnrapi"
	"pnr_tracker/internal/infra/pubsub"
	"pnr_tracker/internal/infra/scheduler"
	"pnr_tracker/internal/infra/sms"
	"pnr_tracker/internal/infra/telegram"
)

// components is everything the commands need, built once from configuration.
type components struct {
	subs    subscription.Repository
	records notification.Repository
	users   user.Repository

	fetcher       *pnrapi.Client
	dispatcher    *app.NotificationDispatcher
	reconciler    *app.ReconciliationService
	subscriptions *app.SubscriptionService
	scheduler     *scheduler.ReconcileScheduler
	metrics       *metrics.Metrics

	redis *redis.Client
	bot   *telebot.Bot

	closers []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.AppConfig, log *logrus.Entry) (*components, error) {
	c := &components{metrics: metrics.NewMetrics()}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	if err := c.openStore(ctx, cfg, log); err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		client, err := pubsub.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		c.redis = client
		c.closers = append(c.closers, func() { _ = client.Close() })
		log.Info("Redis connection established successfully.")
	}

	if cfg.TelegramToken != "" {
		bot, err := telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, tc telebot.Context) { // Global error handler
				entry := log.WithError(err).WithField("component", "telegram")
				if tc != nil && tc.Chat() != nil {
					entry = entry.WithField("chat_id", tc.Chat().ID)
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			return nil, fmt.Errorf("could not create Telegram bot: %w", err)
		}
		c.bot = bot
	}

	c.fetcher = pnrapi.NewClient(cfg.PNRAPIBaseURL, cfg.RapidAPIHost, cfg.RapidAPIKey, cfg.PNRAPITimeout)

	c.dispatcher = app.NewNotificationDispatcher(
		c.records,
		c.transports(cfg, log),
		cfg.NotifySendTimeout,
		c.metrics,
		log,
	)
	c.reconciler = app.NewReconciliationService(
		c.subs, c.users, c.fetcher, c.dispatcher,
		cfg.ReconcileWorkers, c.metrics, log,
	)
	c.subscriptions = app.NewSubscriptionService(c.subs, c.records, c.users, c.dispatcher, log)

	var guard scheduler.RunGuard
	if c.redis != nil {
		guard = lock.NewRedisRunGuard(c.redis, lock.DefaultKey, cfg.ReconcileLockTTL, log)
	}
	c.scheduler = scheduler.NewReconcileScheduler(
		c.reconciler, guard, c.metrics, log,
		cfg.ReconcileCron, cfg.ReconcileOnStart,
	)

	ok = true
	return c, nil
}

func (c *components) openStore(ctx context.Context, cfg *config.AppConfig, log *logrus.Entry) error {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("could not connect to database: %w", err)
		}
		c.closers = append(c.closers, func() { db.Close() })
		if err := idb.Migrate(ctx, db); err != nil {
			return err
		}
		c.subs = idb.NewPostgresSubscriptionRepository(db)
		c.records = idb.NewPostgresNotificationRepository(db)
		c.users = idb.NewPostgresUserRepository(db)
		log.Info("Database connection established successfully.")

	case config.StoreDriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, func() { _ = client.Disconnect(context.Background()) })
		db := client.Database(cfg.MongoDB)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		c.subs = mongostore.NewSubscriptionRepository(db)
		c.records = mongostore.NewNotificationRepository(db)
		c.users = mongostore.NewUserRepository(db)
		log.WithField("database", cfg.MongoDB).Info("Mongo connection established successfully.")

	case config.StoreDriverMemory:
		c.subs = memory.NewSubscriptionRepository()
		c.records = memory.NewNotificationRepository()
		c.users = memory.NewUserRepository()
		log.Warn("Using in-memory store; data is lost on restart.")

	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return nil
}

func (c *components) transports(cfg *config.AppConfig, log *logrus.Entry) map[notification.Channel]transport.Transport {
	out := make(map[notification.Channel]transport.Transport)

	switch {
	case cfg.EmailTransport == config.EmailTransportRedis && c.redis != nil:
		out[notification.ChannelEmail] = pubsub.NewRedisTransport(c.redis, cfg.NotifyTopic)
		log.WithField("topic", cfg.NotifyTopic).Info("Email notifications are published to redis.")
	case cfg.SMTPEnabled():
		out[notification.ChannelEmail] = email.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
		log.WithField("smtp_host", cfg.SMTPHost).Info("Email notifications are sent over SMTP.")
	default:
		log.Warn("No email transport configured; email notifications will be recorded as failed.")
	}

	if cfg.TwilioEnabled() {
		out[notification.ChannelSMS] = sms.NewTwilioTransport(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		log.Info("SMS notifications are sent through Twilio.")
	}

	if c.bot != nil {
		out[notification.ChannelTelegram] = telegram.NewTransport(c.bot)
		log.Info("Telegram notifications enabled.")
	}
	return out
}
