package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/pumpspares/src_project/internal/logx"
	"github.com/pumpspares/src_project/internal/services/gateway/app"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logx.Setup("gateway", cfg.LogLevel, cfg.LogFormat)

	provider, err := cfg.sessionProvider()
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	var (
		reg     *prometheus.Registry
		metrics http.Handler
	)
	if !cfg.MetricsDisabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	gwCfg := app.Config{
		CalcBaseURL:     cfg.CalcURL,
		CalcPath:        cfg.CalcPath,
		HTTPTimeout:     cfg.Timeout,
		BreakerFailures: cfg.CBFails,
		BreakerOpenFor:  cfg.CBOpen,
		BreakerInterval: cfg.CBInterval,
		WizardTTL:       cfg.WizardTTL,
		PreviewDebounce: cfg.Debounce,
		MaxUploadBytes:  int64(cfg.MaxUploadMB) << 20,
		Auth:            provider,
		Logger:          logger,
	}
	if reg != nil {
		gwCfg.Registerer = reg
	}
	gw := app.NewGateway(gwCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go gw.Sessions().Run(ctx, cfg.SweepEvery)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gw.Handler(metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("gateway listening on %s (calculator=%s auth=%s)", srv.Addr, cfg.CalcURL, cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	n := gw.Sessions().CloseAll()
	logger.Infof("closed %d wizard sessions", n)
}
