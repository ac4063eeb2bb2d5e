package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wayrafrost/frost-alert-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Reference station defining the coverage geofence.
	Station domain.ReferenceStation

	// Open-Meteo weather retrieval.
	OpenMeteoBaseURL string
	OpenMeteoTimeout time.Duration
	WeatherCacheTTL  time.Duration

	// Model server for classifier inference.
	InferenceURL     string
	InferenceTimeout time.Duration

	// Gemini AI analysis (feature-flagged via GEMINI_API_KEY / GEMINI_ENABLED).
	GeminiAPIKey  string
	GeminiModel   string
	GeminiEnabled bool
	GeminiTimeout time.Duration

	// Twilio SMS dispatch (feature-flagged via credentials presence).
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	SMSEnabled       bool

	// Kafka alert audit stream (feature-flagged via KAFKA_ENABLED).
	KafkaBrokers    []string
	KafkaAlertTopic string
	KafkaEnabled    bool
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	openMeteoTimeout, err := parseDuration("OPENMETEO_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("WEATHER_CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}
	inferenceTimeout, err := parseDuration("INFERENCE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geminiTimeout, err := parseDuration("GEMINI_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	station, err := loadStation()
	if err != nil {
		return nil, err
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	geminiEnabled := geminiKey != ""
	if v := os.Getenv("GEMINI_ENABLED"); v != "" {
		geminiEnabled = v == "true"
	}

	twilioSID := os.Getenv("TWILIO_ACCOUNT_SID")
	twilioToken := os.Getenv("TWILIO_AUTH_TOKEN")
	twilioFrom := os.Getenv("TWILIO_PHONE_NUMBER")
	smsEnabled := twilioSID != "" && twilioToken != "" && twilioFrom != ""

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Station: station,

		OpenMeteoBaseURL: envOrDefault("OPENMETEO_BASE_URL", "https://api.open-meteo.com/v1"),
		OpenMeteoTimeout: openMeteoTimeout,
		WeatherCacheTTL:  cacheTTL,

		InferenceURL:     os.Getenv("INFERENCE_URL"),
		InferenceTimeout: inferenceTimeout,

		GeminiAPIKey:  geminiKey,
		GeminiModel:   envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiEnabled: geminiEnabled,
		GeminiTimeout: geminiTimeout,

		TwilioAccountSID: twilioSID,
		TwilioAuthToken:  twilioToken,
		TwilioFromNumber: twilioFrom,
		SMSEnabled:       smsEnabled,

		KafkaBrokers:    parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic: envOrDefault("KAFKA_ALERT_TOPIC", "frost-alert-events"),
		KafkaEnabled:    kafkaEnabled,
	}

	if cfg.InferenceURL == "" {
		return nil, errors.New("INFERENCE_URL is required")
	}
	if cfg.GeminiEnabled && cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_ENABLED is true but GEMINI_API_KEY is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

// loadStation builds the reference station from the environment, defaulting
// to the LAMAR station at Huayao that the production model was trained on.
func loadStation() (domain.ReferenceStation, error) {
	lat, err := parseFloat("STATION_LATITUDE", -12.0383)
	if err != nil {
		return domain.ReferenceStation{}, err
	}
	lon, err := parseFloat("STATION_LONGITUDE", -75.3228)
	if err != nil {
		return domain.ReferenceStation{}, err
	}
	elevation, err := parseFloat("STATION_ELEVATION", 3350)
	if err != nil {
		return domain.ReferenceStation{}, err
	}
	radius, err := parseFloat("STATION_RADIUS_KM", 50)
	if err != nil {
		return domain.ReferenceStation{}, err
	}
	if radius <= 0 {
		return domain.ReferenceStation{}, errors.New("STATION_RADIUS_KM must be positive")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return domain.ReferenceStation{}, errors.New("station coordinates out of range")
	}

	return domain.ReferenceStation{
		Name:          envOrDefault("STATION_NAME", "Estación LAMAR - Huayao, Junín"),
		Institution:   envOrDefault("STATION_INSTITUTION", "Observatorio Geofísico del IGP"),
		Latitude:      lat,
		Longitude:     lon,
		Elevation:     elevation,
		ValidRadiusKM: radius,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, part := range strings.Split(s, ",") {
		if b := strings.TrimSpace(part); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
