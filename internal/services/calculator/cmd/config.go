package main

import (
	"os"
	"time"

	"github.com/pumpspares/src_project/internal/config"
	"github.com/pumpspares/src_project/pkg/broker"
)

type Config struct {
	HTTPPort  string
	GRPCPort  string
	LogLevel  string
	LogFormat string

	MaxUploadMB int

	// InfluxDB (opzionale: vuoto = history disabilitata)
	InfluxURL     string
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string
	BatchSize     int
	FlushInterval time.Duration

	// MQTT (opzionale: host vuoto = nessun evento)
	MQTT        broker.Config
	MQTTQoS     int
	TopicPrefix string
	DedupTTL    time.Duration
	DedupMax    int

	HealthEvery    time.Duration
	ReadinessGrace time.Duration
}

func loadConfig() (Config, error) {
	src, err := config.Load(os.Getenv("CONFIG_FILE"), "calculator")
	if err != nil {
		return Config{}, err
	}
	return Config{
		HTTPPort:  src.String("HTTP_PORT", "8080"),
		GRPCPort:  src.String("GRPC_PORT", "50051"),
		LogLevel:  src.String("LOG_LEVEL", "info"),
		LogFormat: src.String("LOG_FORMAT", "text"),

		MaxUploadMB: src.Int("MAX_UPLOAD_MB", 10),

		InfluxURL:     src.String("INFLUX_URL", ""),
		InfluxToken:   src.String("INFLUX_TOKEN", ""),
		InfluxOrg:     src.String("INFLUX_ORG", "pumpspares"),
		InfluxBucket:  src.String("INFLUX_BUCKET", "src"),
		BatchSize:     src.Int("WRITE_BATCH_SIZE", 10),
		FlushInterval: src.Duration("WRITE_FLUSH_INTERVAL_MS", 200*time.Millisecond),

		MQTT: broker.Config{
			Host:       src.String("MQTT_HOST", ""),
			Port:       src.Int("MQTT_PORT", 1883),
			User:       src.String("MQTT_USER", "guest"),
			Password:   src.String("MQTT_PASSWORD", "guest"),
			ClientID:   src.String("HOSTNAME", "src-calculator"),
			MaxRetries: src.Int("MQTT_CONNECT_RETRIES", 5),
			MaxElapsed: src.Duration("MQTT_CONNECT_MAX_ELAPSED", 10*time.Second),
		},
		MQTTQoS:     src.Int("MQTT_QOS", 1),
		TopicPrefix: src.String("EVENT_TOPIC_PREFIX", "event/srcCalculated"),
		DedupTTL:    src.Duration("DEDUP_TTL", 10*time.Minute),
		DedupMax:    src.Int("DEDUP_MAX", 20000),

		HealthEvery:    src.Duration("HEALTH_EVERY", 5*time.Second),
		ReadinessGrace: src.Duration("READINESS_GRACE", 5*time.Second),
	}, nil
}
