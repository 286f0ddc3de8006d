package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskbot/api/handler"
	"github.com/fastygo/taskbot/internal/config"
	"github.com/fastygo/taskbot/internal/infrastructure/genai"
	"github.com/fastygo/taskbot/internal/infrastructure/jobsearch"
	"github.com/fastygo/taskbot/internal/infrastructure/monitor"
	"github.com/fastygo/taskbot/internal/infrastructure/outbox"
	pgInfra "github.com/fastygo/taskbot/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskbot/internal/infrastructure/redis"
	"github.com/fastygo/taskbot/internal/infrastructure/telegram"
	"github.com/fastygo/taskbot/internal/middleware"
	"github.com/fastygo/taskbot/internal/router"
	"github.com/fastygo/taskbot/internal/services"
	"github.com/fastygo/taskbot/internal/services/lifecycle"
	"github.com/fastygo/taskbot/internal/services/motivation"
	"github.com/fastygo/taskbot/internal/services/reminder"
	"github.com/fastygo/taskbot/pkg/httpcontext"
	"github.com/fastygo/taskbot/repository"
	"github.com/fastygo/taskbot/repository/memory"
	pgRepo "github.com/fastygo/taskbot/repository/postgres"
	redisRepo "github.com/fastygo/taskbot/repository/redis"
	assistantUC "github.com/fastygo/taskbot/usecase/assistant"
	authUC "github.com/fastygo/taskbot/usecase/auth"
	chatUC "github.com/fastygo/taskbot/usecase/chat"
	"github.com/fastygo/taskbot/usecase/gamification"
	profileUC "github.com/fastygo/taskbot/usecase/profile"
	"github.com/fastygo/taskbot/usecase/ratelimit"
	taskUC "github.com/fastygo/taskbot/usecase/task"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook, Mini App API and background workers",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

// storage is the set of stores chosen by STORAGE_DRIVER.
type storage struct {
	tasks     repository.TaskRepository
	profiles  repository.ProfileRepository
	counters  repository.CounterRepository
	tokens    repository.LaunchTokenRepository
	scheduler *reminder.Scheduler
	probes    map[string]monitor.Probe
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, log)
	appCtx, cancel := manager.Listen(cmd.Context())
	defer cancel()
	defer func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			log.Error("graceful shutdown error", zap.Error(err))
		}
	}()

	store, err := openStorage(appCtx, cfg, manager, log)
	if err != nil {
		return err
	}

	outboxStore, err := outbox.Open(cfg.Outbox.Path)
	if err != nil {
		return err
	}
	manager.Register("outbox_store", func(context.Context) error {
		return outboxStore.Close()
	})

	bot := telegram.New(telegram.Config{
		Token:         cfg.Telegram.BotToken,
		BaseURL:       cfg.Telegram.APIURL,
		Timeout:       cfg.Telegram.Timeout,
		RatePerSecond: cfg.Telegram.RatePerSecond,
	}, log.Named("telegram"))

	messenger := services.NewOutboxProcessor(outboxStore, bot, log.Named("outbox"), services.OutboxConfig{
		Interval:    cfg.Outbox.Interval,
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		Retention:   cfg.Outbox.Retention,
		SendTimeout: cfg.Telegram.Timeout,
	})
	manager.Run("outbox_processor", messenger)

	mon := monitor.New(store.probes, messenger, 10*time.Second, log.Named("monitor"))
	mon.Start()
	manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})

	profiles := profileUC.New(store.profiles, gamification.NewEngine(time.Now), cfg.AdminUserID, log.Named("profile"))
	tasks := taskUC.New(store.tasks, store.scheduler, profiles, messenger, log.Named("task"))
	store.scheduler.SetHandler(tasks.OnReminderFire)
	manager.Run("reminder_scheduler", store.scheduler)

	limiter := ratelimit.New(store.counters, ratelimit.Config{
		DailyLimit: cfg.RateLimit.Daily,
		FailClosed: cfg.RateLimit.FailClosed,
	}, log.Named("ratelimit"))
	generator := genai.New(genai.Config{
		APIKey:  cfg.GenAI.APIKey,
		Model:   cfg.GenAI.Model,
		Timeout: cfg.GenAI.Timeout,
	}, log.Named("genai"))
	jobs := jobsearch.New(jobsearch.Config{
		APIKey:  cfg.JobSearch.APIKey,
		Host:    cfg.JobSearch.Host,
		Timeout: cfg.JobSearch.Timeout,
	}, log.Named("jobsearch"))
	assistant := assistantUC.New(generator, jobs, limiter, log.Named("assistant"))

	auth := authUC.New(store.tokens, authUC.Config{
		BotToken:            cfg.Telegram.BotToken,
		TokenSecret:         cfg.Auth.TokenSecret,
		LaunchTokenTTL:      cfg.Auth.LaunchTokenTTL,
		SessionTTL:          cfg.Auth.SessionTTL,
		AllowUserIDFallback: cfg.Auth.AllowUserIDFallback,
	}, log.Named("auth"))

	chat := chatUC.New(tasks, profiles, assistant, auth, messenger, chatUC.Config{
		MiniAppURL: cfg.Telegram.MiniAppURL,
	}, log.Named("chat"))

	broadcaster, err := motivation.New(profiles, messenger, motivation.Config{
		Schedule:    cfg.Motivation.Schedule,
		BatchSize:   cfg.Motivation.BatchSize,
		Concurrency: cfg.Motivation.Concurrency,
	}, log.Named("motivation"))
	if err != nil {
		return err
	}
	manager.Run("motivation", broadcaster)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Auth:      apiHandler.NewAuthHandler(auth, ctxAdapter, log),
		Profile:   apiHandler.NewProfileHandler(profiles, ctxAdapter, log),
		Task:      apiHandler.NewTaskHandler(tasks, ctxAdapter, log),
		Assistant: apiHandler.NewAssistantHandler(assistant, ctxAdapter, log),
		Webhook:   apiHandler.NewWebhookHandler(chat, cfg.Telegram.WebhookSecret, ctxAdapter, log),
		Health:    apiHandler.NewHealthHandler(mon, ctxAdapter, log),
	}
	r := router.New(handlers, middleware.TelegramAuth(auth, log))

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		log.Info("server started", zap.String("address", cfg.Address()), zap.String("storage", cfg.Storage))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			log.Error("server crashed", zap.Error(err))
			cancel()
		}
	}()
	manager.Register("http_server", func(context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, log *zap.Logger) (*storage, error) {
	reminderCfg := reminder.Config{
		PollInterval: cfg.Reminder.PollInterval,
		BatchSize:    cfg.Reminder.BatchSize,
		Lease:        cfg.Reminder.Lease,
		RetryDelay:   cfg.Reminder.RetryDelay,
		MaxAttempts:  cfg.Reminder.MaxAttempts,
	}

	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage, state is lost on restart")
		return &storage{
			tasks:     memory.NewTaskRepository(),
			profiles:  memory.NewProfileRepository(),
			counters:  memory.NewCounterRepository(),
			tokens:    memory.NewLaunchTokenRepository(),
			scheduler: reminder.NewMemory(reminderCfg, log.Named("reminder")),
			probes:    map[string]monitor.Probe{},
		}, nil
	}

	if err := pgInfra.RunMigrations(cfg, log); err != nil {
		return nil, err
	}

	pool, err := pgInfra.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	manager.Register("postgres", func(context.Context) error {
		pgInfra.Close(pool, log)
		return nil
	})

	redisClient, err := redisInfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	manager.Register("redis", func(context.Context) error {
		return redisClient.Close()
	})

	return &storage{
		tasks:     pgRepo.NewTaskRepository(pool),
		profiles:  pgRepo.NewProfileRepository(pool),
		counters:  redisRepo.NewCounterRepository(redisClient),
		tokens:    redisRepo.NewLaunchTokenRepository(redisClient, cfg.Auth.LaunchTokenTTL),
		scheduler: reminder.NewRedis(redisClient, reminderCfg, log.Named("reminder")),
		probes: map[string]monitor.Probe{
			"postgresql": monitor.PostgresProbe(pool),
			"redis":      monitor.RedisProbe(redisClient),
		},
	}, nil
}
