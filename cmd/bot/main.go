package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/liyubing19/telegram-bot/internal/bot"
	"github.com/liyubing19/telegram-bot/internal/config"
	"github.com/liyubing19/telegram-bot/internal/db"
	"github.com/liyubing19/telegram-bot/internal/domain"
	"github.com/liyubing19/telegram-bot/internal/gate"
	"github.com/liyubing19/telegram-bot/internal/invite"
	"github.com/liyubing19/telegram-bot/internal/ledger"
	"github.com/liyubing19/telegram-bot/internal/logging"
	"github.com/liyubing19/telegram-bot/internal/lookup"
	"github.com/liyubing19/telegram-bot/internal/metrics"
	"github.com/liyubing19/telegram-bot/internal/ratelimit"
	"github.com/liyubing19/telegram-bot/internal/repo"
	"github.com/liyubing19/telegram-bot/internal/repo/sqlitestore"
	"github.com/liyubing19/telegram-bot/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger, closer := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bot stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, health, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	lookupPool, err := db.Connect(ctx, cfg.LookupDatabaseURL)
	if err != nil {
		return err
	}
	defer lookupPool.Close()

	sources, err := lookup.LoadSources(cfg.LookupSourcesFile)
	if err != nil {
		return err
	}
	searcher := lookup.NewPostgres(lookupPool, sources, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	limiter := ratelimit.New(cfg.GlobalRateLimit, time.Second, cfg.UserCooldown)
	points := ledger.New(store, logger, m)
	guard := invite.New(store, points, invite.Config{
		BurstWindow:    cfg.InviteBurstWindow,
		BurstThreshold: cfg.InviteBurstThreshold,
		Bonus:          cfg.InviteBonus,
	}, logger)
	lookups := gate.New(limiter, points, store, searcher, gate.Options{
		LookupTimeout: cfg.LookupTimeout,
		Recorder:      m,
		Logger:        logger,
	})
	accounts := gate.NewAccountService(store, points, guard, gate.AccountOptions{
		CheckInBonus: cfg.CheckInBonus,
		Recorder:     m,
		Logger:       logger,
	})

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("bot init: %w", err)
	}
	botAPI.Debug = false

	g, gctx := errgroup.WithContext(ctx)

	var members bot.MembershipChecker = bot.AllowAll{}
	if cfg.RequiredChannelID != 0 {
		members = bot.NewChannelMembership(botAPI, cfg.RequiredChannelID, logger)
	}
	h := bot.NewHandler(bot.NewThrottledSender(gctx, botAPI, cfg.OutboundRate), lookups, accounts, bot.Options{
		BotUsername: botAPI.Self.UserName,
		ChannelLink: cfg.ChannelLink,
		Members:     members,
		Logger:      logger,
	})

	hour, minute := cfg.ResetClock()
	reset := worker.DailyReset{
		Resetter: accounts,
		Location: cfg.Location(),
		Hour:     hour,
		Minute:   minute,
		Logger:   logger,
	}
	g.Go(func() error { return reset.Run(gctx) })
	g.Go(func() error {
		return worker.RunJanitor(gctx, logger, cfg.JanitorInterval, time.Now, limiter, guard)
	})
	if cfg.AdminAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, logger, cfg.AdminAddr, metrics.Router(reg, health))
		})
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)

	logger.Info("bot started", "username", botAPI.Self.UserName, "store", cfg.StoreDriver)

	g.Go(func() error {
		var wg sync.WaitGroup
		defer wg.Wait()
		for {
			select {
			case <-gctx.Done():
				botAPI.StopReceivingUpdates()
				return nil
			case upd, ok := <-updates:
				if !ok {
					return nil
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					h.HandleUpdate(gctx, upd)
				}()
			}
		}
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (domain.AccountStore, metrics.HealthFunc, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s.Ping, func() { _ = s.Close() }, nil
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		applied, err := db.ApplyMigrations(ctx, pool, db.Migrations())
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "files", applied)
		}
		return repo.NewUsers(pool), pool.Ping, pool.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
