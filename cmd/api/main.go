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

	"github.com/zhouzirui/wise-mentor/backend/internal/config"
	"github.com/zhouzirui/wise-mentor/backend/internal/handler"
	"github.com/zhouzirui/wise-mentor/backend/internal/logger"
	"github.com/zhouzirui/wise-mentor/backend/internal/model/persona"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/ai"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/chat"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/exchange"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(cfg.Log)
	if envErr != nil {
		log.WithError(envErr).Warn("failed to load .env file, continuing with system environment variables only")
	}

	// Initialize persona store
	personas := persona.Seed()
	if cfg.Persona.File != "" {
		personas, err = persona.LoadFile(cfg.Persona.File, personas)
		if err != nil {
			log.WithError(err).WithField("file", cfg.Persona.File).Fatal("failed to load persona file")
		}
	}
	personaStore := persona.NewMemoryStore(personas)
	active, err := persona.Resolve(personaStore, cfg.Persona.ID)
	if err != nil {
		log.WithError(err).WithField("persona", cfg.Persona.ID).Fatal("failed to resolve persona")
	}

	chatService := chat.NewService(active.Greeting)

	// Initialize AI session; the provider is built on first use
	factory := ai.NewFactory(cfg.AI, active, log)
	if factory == nil {
		log.WithFields(logrus.Fields{
			"provider": cfg.AI.Provider,
			"missing":  cfg.AI.MissingCredential(),
		}).Warn("LLM credentials not configured, replies will fall back to the error message")
	} else {
		log.WithField("provider", cfg.AI.Provider).Info("AI session configured")
	}
	session := ai.NewSession(factory, log)
	defer func() {
		if err := session.Close(); err != nil {
			log.WithError(err).Warn("failed to close AI session")
		}
	}()

	orchestrator := exchange.New(chatService, session, log)

	router := handler.NewRouter(handler.Deps{
		Personas: personaStore,
		Persona:  active,
		Chat:     chatService,
		Session:  session,
		Exchange: orchestrator,
		Logger:   log,
	})

	startServer(ctx, cfg.Server, router, orchestrator, log)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, orchestrator *exchange.Orchestrator, log *logrus.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.WithField("addr", addr).Info("Wise Mentor backend listening")
	if err := runServer(ctx, srv, orchestrator); err != nil {
		log.WithError(err).Error("server error")
		return
	}
	log.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server, orchestrator *exchange.Orchestrator) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		// let a reply that is still streaming land in the transcript
		_ = orchestrator.Wait(shutdownCtx)
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
