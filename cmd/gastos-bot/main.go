package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"gastos/internal/backend"
	"gastos/internal/bot"
	"gastos/internal/budget"
	"gastos/internal/cache"
	"gastos/internal/catalog"
	"gastos/internal/config"
	"gastos/internal/dialog"
	apphttp "gastos/internal/http"
	applog "gastos/internal/log"
	"gastos/internal/metrics"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/persona"
	"gastos/internal/reminder"
	"gastos/internal/services"
	"gastos/internal/telegram"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logCfg := applog.DefaultConfig()
	logCfg.Component = applog.ComponentBot
	logCfg.Format = cfg.LogFormat
	if level, err := applog.ParseLevel(cfg.LogLevel); err == nil {
		logCfg.Level = level
	}
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Bot stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Bot stopped")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.BotConfigPath)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "Bot configuration loaded",
		"path", cfg.BotConfigPath,
		"categories", len(cat.Categories),
		"modes", len(cat.Modes))

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentStorage).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	loc := cfg.Location()
	reg := metrics.NewRegistry()

	budgetCache := budget.NewCache(res.Store, budget.CacheConfig{
		ExpensesTable: cfg.ExpensesSheet,
		CapsTable:     cfg.BudgetSheet,
		Location:      loc,
	})
	err = budgetCache.Load(ctx, true)
	reg.ObserveReload(budgetCache.Skipped(), err)
	if err != nil {
		// The first query retries the load.
		logger.WarnContext(ctx, "Initial budget cache load failed", "error", err)
	}

	resolver := persona.NewResolver(cat, res.Sessions)
	evaluator := budget.NewEvaluator(budgetCache, resolver)

	var publisher services.Publisher
	if res.Publisher != nil {
		publisher = res.Publisher
	}
	ledger := services.NewLedgerService(res.Store, budgetCache, evaluator, publisher, reg, services.LedgerConfig{
		ExpensesTable: cfg.ExpensesSheet,
		IncomesTable:  cfg.IncomesSheet,
		SavingsTable:  cfg.SavingsSheet,
		Location:      loc,
	})

	tg, err := telegram.New(cfg.TelegramToken, telegram.Options{
		Endpoint:       cfg.TelegramAPIEndpoint,
		RequestTimeout: cfg.TelegramTimeout,
	})
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "Connected to Telegram", "username", tg.Username())

	slots := cfg.Slots()
	times := make([]string, len(slots))
	for i, s := range slots {
		times[i] = s.String()
	}
	router := bot.NewRouter(dialog.NewMachine(cat, loc, nil), ledger, resolver, res.Sessions, tg, reg, bot.Config{
		ConversationTimeout: cfg.ConversationTimeout,
		ReminderTimes:       times,
	}).WithLogger(logger.WithComponent(applog.ComponentBot))

	scheduler := reminder.NewScheduler(res.Sessions, tg, reg, reminder.Config{
		Slots:    slots,
		Location: loc,
		Interval: cfg.ReminderInterval,
		CatchUp:  cfg.ReminderCatchUp,
	})
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.ChatRatePerMinute,
		Burst:             cfg.ChatBurst,
	}, reg)
	sweeper := cache.NewManager(router.Conversations(), limiter.Buckets())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tg.Run(ctx, limiter.Middleware(router.Handle))
	})
	g.Go(func() error {
		return scheduler.Run(ctx)
	})
	g.Go(func() error {
		return sweeper.Run(ctx, cfg.CacheSweepInterval)
	})
	if cfg.MetricsPort != "" {
		srv := apphttp.NewServer(net.JoinHostPort("", cfg.MetricsPort), reg.Gatherer(), func(ctx context.Context) error {
			return budgetCache.Load(ctx, false)
		})
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	logger.InfoContext(ctx, "Bot started",
		"data_backend", cfg.DataBackend,
		"session_backend", cfg.SessionBackend,
		"timezone", loc.String(),
		"amqp_enabled", res.Publisher != nil)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
