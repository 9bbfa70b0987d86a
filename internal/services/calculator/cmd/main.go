package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pumpspares/src_project/internal/logx"
	"github.com/pumpspares/src_project/internal/services/calculator"
	"github.com/pumpspares/src_project/pkg/broker"
	"github.com/pumpspares/src_project/pkg/dedup"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logx.Setup("calculator", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := calculator.Options{
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		Registerer:     reg,
		Logger:         logger,
	}

	// === InfluxDB ===
	var history *calculator.History
	if cfg.InfluxURL != "" {
		iopts := influxdb2.DefaultOptions().
			SetBatchSize(uint(cfg.BatchSize)).
			SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
		influx := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, iopts)
		defer influx.Close()
		history = calculator.NewHistory(influx, cfg.InfluxOrg, cfg.InfluxBucket)
		opts.History = history
		logger.Infof("history: influx %s bucket=%s", cfg.InfluxURL, cfg.InfluxBucket)
	} else {
		logger.Warn("history disabled (INFLUX_URL not set)")
	}

	// === MQTT ===
	if cfg.MQTT.Host != "" {
		client, err := broker.Connect(ctx, cfg.MQTT)
		if err != nil {
			logger.Fatalf("mqtt connection error: %v", err)
		}
		defer broker.Close(client)
		pub := broker.NewPublisher(client, byte(cfg.MQTTQoS), 2*time.Second)
		opts.Events = calculator.NewEmitter(pub, dedup.New(cfg.DedupTTL, cfg.DedupMax), cfg.TopicPrefix)
	} else {
		logger.Warn("event publishing disabled (MQTT_HOST not set)")
	}

	svc := calculator.NewService(opts)

	hs := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           svc.Routes(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 5 * time.Second,
	}
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatalf("listen :%s: %v", cfg.GRPCPort, err)
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("calculator: HTTP listening on :%s", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("calculator: gRPC health on :%s", cfg.GRPCPort)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		svc.WatchHealth(gctx, healthSrv, cfg.HealthEvery)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("calculator: shutting down...")
		shCtx, cancel := context.WithTimeout(context.Background(), cfg.ReadinessGrace)
		defer cancel()
		_ = hs.Shutdown(shCtx)
		grpcServer.GracefulStop()
		if history != nil {
			history.Flush()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("calculator: %v", err)
	}
}
