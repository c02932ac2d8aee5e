package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tschausepp/engine"
	"github.com/jason-s-yu/tschausepp/internal/auth"
	"github.com/jason-s-yu/tschausepp/internal/cache"
	"github.com/jason-s-yu/tschausepp/internal/config"
	"github.com/jason-s-yu/tschausepp/internal/database"
	"github.com/jason-s-yu/tschausepp/internal/game"
	"github.com/jason-s-yu/tschausepp/internal/handlers"
	"github.com/jason-s-yu/tschausepp/internal/lobby"
	"github.com/jason-s-yu/tschausepp/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("loading config")
	}
	cfg.ConfigureLogger()
	log := logrus.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules := engine.DefaultHouseRules()
	rules.SeppAtOneCard = cfg.SeppAtOneCard
	roomOpts := game.Options{
		TurnDuration: cfg.TurnDuration,
		GracePeriod:  cfg.ReconnectGrace,
		AIStepDelay:  cfg.AIStepDelay,
		Rules:        rules,
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, action history disabled")
		} else {
			defer rdb.Close()
			roomOpts.Actions = cache.NewHistorian(rdb)
			log.WithField("addr", cfg.RedisAddr).Info("action history enabled")
		}
	}

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Warn("postgres unavailable, match history disabled")
		} else {
			defer pool.Close()
			rec := database.NewRecorder(pool)
			if err := rec.EnsureSchema(ctx); err != nil {
				log.WithError(err).Fatal("preparing match history schema")
			}
			roomOpts.Results = rec
			log.Info("match history enabled")
		}
	}

	signer, err := auth.NewSigner([]byte(cfg.TokenSecret), nil)
	if err != nil {
		log.WithError(err).Fatal("creating token signer")
	}
	if cfg.TokenSecret == "" {
		log.Warn("TOKEN_SECRET not set; reconnect tokens will not survive a restart")
	}

	limiter := ratelimit.New(ratelimit.WithLogger(log))
	go limiter.Run(ctx, cfg.RateSweep)

	hub := handlers.NewHub(log)
	mgr, err := lobby.NewManager(lobby.Options{
		Room:          roomOpts,
		Sender:        hub,
		Signer:        signer,
		Limiter:       limiter,
		SweepInterval: cfg.SweepInterval,
		Logger:        log,
	})
	if err != nil {
		log.WithError(err).Fatal("creating lobby")
	}
	defer mgr.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.NewServer(mgr, hub, cfg.AllowedOrigins, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
}
