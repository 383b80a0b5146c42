package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/soham-0-0-7/ai-quizzer/internal/cache"
	"github.com/soham-0-0-7/ai-quizzer/internal/config"
	"github.com/soham-0-0-7/ai-quizzer/internal/database"
	"github.com/soham-0-0-7/ai-quizzer/internal/handlers"
	"github.com/soham-0-0-7/ai-quizzer/internal/llm"
	"github.com/soham-0-0-7/ai-quizzer/internal/logger"
	"github.com/soham-0-0-7/ai-quizzer/internal/mailer"
	"github.com/soham-0-0-7/ai-quizzer/internal/metrics"
	"github.com/soham-0-0-7/ai-quizzer/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New("quizgen", cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	devUser, err := database.SeedDevUser(db, cfg, log)
	if err != nil {
		return err
	}

	rdb, err := database.ConnectRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	metrics.RegisterDBStats(reg, sqlDB)

	var sender mailer.Sender
	if cfg.MailEnabled() {
		sender = mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	} else {
		log.Warn("SMTP not configured, result emails will only be logged")
		sender = mailer.NewLogSender(log)
	}
	mailWorker := mailer.NewWorker(sender, log, cfg.MailQueueSize, cfg.MailWorkers)
	metrics.RegisterMailQueue(reg, mailWorker)

	generator := llm.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTimeout)
	if !generator.IsAvailable() {
		log.Warn("LLM_API_KEY not set, quiz generation, grading and hints will fail")
	}

	store := cache.NewQuizStore(rdb)
	reader := services.NewQuizReader(db, store, log, m)
	auth := services.NewAuthService(db, cache.NewBlacklist(rdb), store, reader, cfg.JWTSecret, cfg.TokenTTL, log)
	if cfg.BypassToken != "" {
		if devUser == nil {
			log.Warn("AUTH_BYPASS_TOKEN ignored: no dev user seeded")
		} else {
			log.WithField("email", devUser.Email).Warn("auth bypass token enabled for dev user")
		}
		auth.EnableBypass(cfg.BypassToken, devUser)
	}
	dashboard := services.NewDashboardService(db, reader, log)

	router, err := handlers.NewRouter(handlers.Deps{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Redis:       rdb,
		Metrics:     m,
		Auth:        auth,
		Quizzes:     services.NewQuizService(db, reader, store, dashboard, generator, log, m),
		Submissions: services.NewSubmissionService(db, reader, generator, mailWorker, log, m),
		Dashboard:   dashboard,
		Leaderboard: services.NewLeaderboardService(db),
		Hints:       services.NewHintService(db, generator, log, m),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown failed")
	}
	if err := mailWorker.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("mail queue not fully drained")
	}

	log.Info("server stopped")
	return nil
}
