package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wayrafrost/frost-alert-service/internal/adapter/gemini"
	httpadapter "github.com/wayrafrost/frost-alert-service/internal/adapter/http"
	"github.com/wayrafrost/frost-alert-service/internal/adapter/inference"
	kafkaadapter "github.com/wayrafrost/frost-alert-service/internal/adapter/kafka"
	"github.com/wayrafrost/frost-alert-service/internal/adapter/openmeteo"
	"github.com/wayrafrost/frost-alert-service/internal/adapter/twilio"
	"github.com/wayrafrost/frost-alert-service/internal/config"
	"github.com/wayrafrost/frost-alert-service/internal/observability"
	"github.com/wayrafrost/frost-alert-service/internal/predictor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	weatherClient := openmeteo.NewClient(cfg.OpenMeteoBaseURL, cfg.OpenMeteoTimeout, metrics, logger)
	weather := openmeteo.NewCachedClient(weatherClient, cfg.WeatherCacheTTL, metrics, logger)

	classifier := inference.NewClient(cfg.InferenceURL, cfg.InferenceTimeout, metrics, logger)

	// Gemini analysis (feature-flagged via GEMINI_API_KEY / GEMINI_ENABLED).
	var analyzer predictor.Analyzer
	if cfg.GeminiEnabled {
		analyzer = gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout, metrics, logger)
		metrics.GeminiEnabled.Set(1)
		logger.Info("gemini analysis enabled", "model", cfg.GeminiModel, "timeout", cfg.GeminiTimeout)
	} else {
		logger.Info("gemini analysis disabled, degrading to classifier only")
	}

	// SMS dispatch (feature-flagged via Twilio credentials presence).
	var notifier predictor.Notifier
	if cfg.SMSEnabled {
		notifier = twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, metrics, logger)
		metrics.SMSEnabled.Set(1)
		logger.Info("sms dispatch enabled", "from", cfg.TwilioFromNumber)
	} else {
		logger.Info("sms dispatch disabled")
	}

	// Alert audit stream (feature-flagged via KAFKA_ENABLED).
	var publisher predictor.AlertPublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAlertTopic, metrics, logger)
		publisher = kafkaPublisher
		logger.Info("alert audit stream enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("alert audit stream disabled")
	}

	service := predictor.NewService(cfg.Station, weather, classifier, analyzer, notifier, publisher, metrics, logger)
	server := httpadapter.New(cfg.HTTPAddr, cfg.ShutdownTimeout, service, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("frost alert service starting",
		"station", cfg.Station.Name,
		"radius_km", cfg.Station.ValidRadiusKM,
		"addr", cfg.HTTPAddr)

	if err := server.Run(ctx); err != nil {
		logger.Error("http server error", "error", err)
	}

	logger.Info("shutting down")
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	logger.Info("shutdown complete")
}
