package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
	"github.com/spf13/cobra"
	"github.com/tbxark/tripvoice"
	"github.com/tbxark/tripvoice/campaign"
	"github.com/tbxark/tripvoice/generate"
	"github.com/tbxark/tripvoice/internal/config"
	"github.com/tbxark/tripvoice/internal/logging"
	"github.com/tbxark/tripvoice/internal/metrics"
	"github.com/tbxark/tripvoice/session"
	redisstore "github.com/tbxark/tripvoice/session/redis"
	"github.com/tbxark/tripvoice/stage"
	"github.com/tbxark/tripvoice/workflow"
)

// app holds the components every command shares.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
	coordinator *tripvoice.Coordinator
	history     session.Cache[[]*schema.Message]
	closers     []func() error
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(level, cfg.Log.Format)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	gen, err := a.newGenerator(ctx)
	if err != nil {
		return nil, err
	}
	machine, err := workflow.New(stage.Default(gen),
		workflow.WithObserver(a.metrics),
		workflow.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	sessions := a.newSessions()
	a.coordinator = tripvoice.NewCoordinator(machine, sessions, tripvoice.WithLogger(logger))
	return a, nil
}

func (a *app) newGenerator(ctx context.Context) (generate.Generator, error) {
	mc := a.cfg.Model
	if mc.APIKey == "" {
		a.logger.Warn("No model API key configured, using scripted prompts only")
		return generate.Unavailable{}, nil
	}
	models := append([]string{mc.Model}, mc.Fallbacks...)
	generators := make([]generate.Generator, 0, len(models))
	for _, name := range models {
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  mc.APIKey,
			Model:   name,
			BaseURL: mc.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model %s: %w", name, err)
		}
		generators = append(generators, generate.NewChatModelGenerator(cm,
			generate.WithTimeout(mc.Timeout),
			generate.WithLogger(a.logger),
		))
	}
	if len(generators) == 1 {
		return generators[0], nil
	}
	return generate.NewFailbackGenerator(generators...), nil
}

func (a *app) newSessions() *session.Manager {
	rc := a.cfg.Redis
	if rc.Addr == "" {
		a.history = session.NewMemoryCache[[]*schema.Message]()
		return session.NewManager(session.NewMemoryStore(), session.WithLogger(a.logger))
	}
	client := redisstore.NewClient(rc.Addr, rc.Password, rc.DB)
	a.closers = append(a.closers, client.Close)
	a.history = redisstore.NewCache[[]*schema.Message](client, rc.Prefix, rc.TTL)
	a.logger.Info("Using Redis session store", "addr", rc.Addr, "prefix", rc.Prefix)
	return session.NewManager(
		redisstore.NewStore(client, redisstore.WithTTL(rc.TTL), redisstore.WithPrefix(rc.Prefix)),
		session.WithLocker(redisstore.NewLocker(client, rc.Prefix)),
		session.WithLogger(a.logger),
	)
}

func (a *app) newDispatcher() campaign.Dispatcher {
	cc := a.cfg.Campaign
	if cc.WebhookURL == "" {
		return campaign.DispatcherFunc(func(ctx context.Context, phone string) error {
			return fmt.Errorf("no call webhook configured")
		})
	}
	return campaign.NewWebhookDispatcher(cc.WebhookURL, cc.SIPTrunkID, 0)
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("Failed to close resource", "err", err)
		}
	}
}
