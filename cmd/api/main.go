package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/analysis/trigger"
	"github.com/zhouzirui/vc-hotseat/backend/internal/config"
	"github.com/zhouzirui/vc-hotseat/backend/internal/handler"
	"github.com/zhouzirui/vc-hotseat/backend/internal/identity"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/ai"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/hotseat"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/mentor"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/report"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/search"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/session"
	"github.com/zhouzirui/vc-hotseat/backend/internal/store"
	"github.com/zhouzirui/vc-hotseat/backend/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Warn("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	cfg.Log.Apply()

	pitchStore, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open store")
	}
	defer closeStore()

	evaluator, err := newEvaluator(cfg.Trigger)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load trigger phrases")
	}

	// AI service is optional; without it rebuttals are skipped and reports fall back.
	var aiService *ai.Service
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err == nil {
			aiService, err = ai.NewService(ctx, chatModel, cfg.AI)
		}
		if err != nil {
			logrus.WithError(err).Warn("failed to initialize AI service, continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		} else {
			logrus.WithField("model", cfg.AI.Model).Info("AI service initialized")
		}
	} else {
		logrus.Info("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	if !cfg.Search.Enabled() {
		logrus.Info("TAVILY_API_KEY not set, fact checks will use generic framing")
	}
	searchService := search.NewService(search.NewClient(cfg.Search.APIKey, cfg.Search.BaseURL, cfg.Search.Timeout))

	extractor, ids := newIdentity(cfg.Auth)
	jobs := worker.NewScheduler(cfg.Jobs.Timeout)

	reports := report.NewService(pitchStore, aiService)
	live := hotseat.NewService(hotseat.Deps{
		Store:     pitchStore,
		Identity:  ids,
		Evaluator: evaluator,
		Facts:     searchService,
		Rebuttals: aiService,
		Reactions: aiService,
	})
	sessions := session.NewService(session.Deps{
		Store:      pitchStore,
		Identity:   ids,
		Jobs:       jobs,
		Prefetcher: searchService,
		Reports:    reports,
		Live:       live,
	})
	mentorService := mentor.NewService(pitchStore, ids, aiService)

	router := handler.NewRouter(handler.Services{
		Sessions: sessions,
		Hotseat:  live,
		Mentor:   mentorService,
		Search:   searchService,
		Identity: extractor,
	})

	startServer(ctx, cfg.Server, router)

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := jobs.Shutdown(drainCtx); err != nil {
		logrus.WithError(err).Warn("background jobs cancelled before finishing")
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (pitch.Store, func(), error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		db, err := store.OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		logrus.WithField("dsn", cfg.DSN).Info("using sqlite store")
		return db, func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("failed to close sqlite store")
			}
		}, nil
	default:
		logrus.Info("using in-memory store")
		return store.NewMemory(), func() {}, nil
	}
}

func newEvaluator(cfg config.TriggerConfig) (*trigger.Evaluator, error) {
	if cfg.PhrasesFile == "" {
		return trigger.NewEvaluator(nil), nil
	}
	table, err := trigger.LoadTable(cfg.PhrasesFile)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"file": cfg.PhrasesFile, "rules": len(table)}).Info("trigger phrases loaded")
	return trigger.NewEvaluator(table), nil
}

func newIdentity(cfg config.AuthConfig) (identity.Extractor, identity.Provider) {
	if cfg.Mode == config.AuthNone {
		logrus.WithField("user", cfg.TestUser).Warn("authentication disabled, all requests act as the test user")
		return identity.FixedExtractor{UserID: cfg.TestUser}, identity.ContextProvider{}
	}
	return identity.HeaderExtractor{Header: cfg.UserHeader}, identity.ContextProvider{}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logrus.WithField("addr", addr).Info("VC Hot Seat backend listening")
	if err := runServer(ctx, srv); err != nil {
		logrus.WithError(err).Fatal("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
