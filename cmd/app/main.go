package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"autoshorts/internal/config"
	"autoshorts/internal/domain/ports/adapter"
	tele "autoshorts/internal/infra/adapters/telegram"
	"autoshorts/internal/infra/i18n"
	"autoshorts/internal/infra/logging"
	"autoshorts/internal/infra/metrics"
	"autoshorts/internal/infra/sched"
	"autoshorts/internal/infra/scheduler"
	"autoshorts/internal/infra/storage"
	"autoshorts/internal/infra/web"
	"autoshorts/internal/infra/worker"
	"autoshorts/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("autoshorts stopped")
	}
	logger.Info().Msg("bye")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	artifacts, err := storage.NewFSStore(cfg.Storage.ArtifactDir)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Lang)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	s := buildStudio(cfg, logger)

	// ---- Use cases ----
	defaults, err := usecase.AutomationDefaults(cfg.Automation.IsActive(), cfg.Automation.MorningSlot, cfg.Automation.EveningSlot)
	if err != nil {
		return fmt.Errorf("automation: %w", err)
	}
	slots := usecase.NewSchedulerUseCase(st.Automation, usecase.SchedulerSettings{
		Defaults:   defaults,
		RetryAfter: cfg.Automation.RetryAfter,
		Location:   loc,
	}, nil, metrics.Scheduler{}, logger)

	ledger := usecase.NewLedgerUseCase(st.Jobs, st.Counters, st.Tx, cfg.Pipeline.AdFrequency, logger)

	pipeline := usecase.NewPipelineUseCase(usecase.PipelineDeps{
		ScriptExec: s.ScriptExec,
		MediaExec:  s.MediaExec,
		Scripts:    s.Scripts,
		Voice:      s.Media,
		Video:      s.Media,
		Clips:      s.Clips,
		Jobs:       st.Jobs,
		Ledger:     ledger,
		Counters:   st.Counters,
		Artifacts:  artifacts,
		Notifier:   buildNotifier(cfg, logger),
		Slots:      slots,
		Observer:   metrics.Pipeline{},
		Messages:   tr,
	}, usecase.PipelineSettings{
		PollInterval:    cfg.Pipeline.PollInterval,
		PollMaxAttempts: cfg.Pipeline.PollMaxAttempts,
		AdFrequency:     cfg.Pipeline.AdFrequency,
		RewardNormal:    cfg.Pipeline.RewardNormal,
		RewardViral:     cfg.Pipeline.RewardViral,
	}, logger)

	trigger := usecase.NewTriggerUseCase(usecase.TriggerDeps{
		ScriptExec: s.ScriptExec,
		MediaExec:  s.MediaExec,
		Scripts:    s.Scripts,
		Video:      s.Media,
		Clips:      s.Clips,
		Jobs:       st.Jobs,
		Ledger:     ledger,
		Artifacts:  artifacts,
		Locker:     st.Locker,
		Observer:   metrics.Pipeline{},
	}, usecase.TriggerSettings{
		PollInterval:    cfg.Cron.PollInterval,
		PollMaxAttempts: cfg.Cron.PollMaxAttempts,
		LockTTL:         cfg.Cron.LockTTL,
		Location:        loc,
	}, logger)

	// ---- Workers ----
	// One worker: a generation owns the credential pool while it runs.
	pool := worker.NewPool(1, cfg.Pipeline.QueueSize, logger)
	processor := worker.NewGenerationProcessor(pipeline, st.Jobs, slots, pool, logger)
	catchUp := sched.NewCatchUpWorker(slots, processor, logger)

	recurring := []*scheduler.Recurring{
		scheduler.NewRecurring("catch-up", cfg.Automation.Interval, cfg.Automation.Interval, catchUp.Tick, logger),
	}
	if st.stats != nil {
		recurring = append(recurring, scheduler.NewRecurring("db-stats", 15*time.Second, 0, st.stats, logger))
	}

	// ---- HTTP ----
	if cfg.Cron.Secret == "" {
		logger.Warn().Msg("cron.secret is empty; the trigger endpoint refuses every call")
	}
	srv := web.NewServer(web.Deps{
		Ledger:    ledger,
		Scheduler: slots,
		Trigger:   trigger,
		Generator: processor,
		Artifacts: artifacts,
		Limiter:   st.Limiter,
	}, web.Options{
		AdminKey:   cfg.Security.AdminKey,
		CronSecret: cfg.Cron.Secret,
		RateLimit:  cfg.Cron.RateLimit,
		RateWindow: cfg.Cron.RateWindow,
	}, web.NewAuthManager(cfg.Security.JWTSecret, !cfg.Runtime.Dev, "", cfg.Security.TokenTTL), logger)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	pool.Start(gctx)
	for _, r := range recurring {
		r.Start(gctx)
	}

	g.Go(func() error {
		logger.Info().Str("addr", httpSrv.Addr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	for _, r := range recurring {
		r.Stop()
	}
	pool.Stop()
	return err
}

func buildNotifier(cfg *config.Config, logger *zerolog.Logger) adapter.Notifier {
	if cfg.Bot.Token == "" {
		return tele.NewLogNotifier(logger)
	}
	bot, err := tele.NewBotNotifier(&cfg.Bot, "", logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram notifier unavailable; logging notifications instead")
		return tele.NewLogNotifier(logger)
	}
	return bot
}
