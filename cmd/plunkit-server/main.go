package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/plunkit-dev/plunkit/internal/api"
	"github.com/plunkit-dev/plunkit/internal/config"
	"github.com/plunkit-dev/plunkit/internal/sandbox"
	"github.com/plunkit-dev/plunkit/internal/store"
	"github.com/plunkit-dev/plunkit/internal/worldmanager"
)

func main() {
	gameAddr := flag.String("game-addr", "", "Game listener address for the default world (overrides PLUNKIT_GAME_ADDR)")
	httpAddr := flag.String("http-addr", "", "HTTP management API address (overrides PLUNKIT_HTTP_ADDR)")
	worldID := flag.String("world", "overworld", "Default world id to create and start on boot")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()
	if *gameAddr != "" {
		cfg.GameAddr = *gameAddr
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	persistence := store.Noop{}
	sb := sandbox.NewManager(cfg.SandboxFuelBudget, cfg.SandboxMemoryLimit, cfg.SandboxTableLimit, logger)
	worlds := worldmanager.NewManager(cfg, sb, persistence, logger)

	if err := worlds.CreateWorld(*worldID); err != nil {
		logger.WithError(err).Fatal("failed to create default world")
	}
	if err := worlds.StartWorld(*worldID, cfg.GameAddr); err != nil {
		logger.WithError(err).Fatal("failed to start default world")
	}
	go worlds.Run()

	mgmt := api.NewServer(worlds, sb, logger)
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: mgmt}
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("management API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("management API stopped")
		}
	}()

	logger.WithFields(logrus.Fields{
		"world": *worldID,
		"addr":  cfg.GameAddr,
	}).Info("plunkit server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig).Info("shutting down")

	worlds.Stop()
	worlds.StopWorld(*worldID)
	httpSrv.Close()
	logger.Info("server stopped")
}
