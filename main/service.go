package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"eaiser/backendclient"
	"eaiser/common"
	"eaiser/config"
	"eaiser/location"
	"eaiser/server"

	"github.com/apex/log"
)

func main() {
	flag.Parse()
	cfg := config.Load()
	common.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	log.Info("Hello!")
	backend := backendclient.New(cfg.BackendURL, cfg.RequestTimeout)
	provider, status := location.NewProvider(cfg, &http.Client{Timeout: cfg.RequestTimeout})
	if status != location.ProviderReady {
		log.Warnf("Geocoding disabled: %s", status.Message())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, backend, provider, status).StartService(ctx); err != nil {
		log.Fatalf("Service failed: %v", err)
	}
	log.Info("Bye!")
}
