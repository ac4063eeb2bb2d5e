// Package predictor orchestrates one frost analysis request: geofence
// validation, weather retrieval, classifier inference, generative-AI
// analysis, verdict reconciliation and alert dispatch.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wayrafrost/frost-alert-service/internal/domain"
	"github.com/wayrafrost/frost-alert-service/internal/observability"
)

// ErrSuperseded marks a request displaced by a newer one for the same
// location. Its partial results are discarded, never surfaced.
var ErrSuperseded = errors.New("request superseded by a newer one for the same location")

// outOfCoverageSuggestion accompanies every out-of-coverage response.
const outOfCoverageSuggestion = "Seleccione una ubicación dentro del valle del Mantaro, Junín, a menos de 50 km de la estación Huayao."

// WeatherProvider supplies the weather snapshot for a point.
type WeatherProvider interface {
	FrostRiskData(ctx context.Context, lat, lon float64) (domain.WeatherSnapshot, error)
}

// Classifier runs the frost classifier over a feature vector.
type Classifier interface {
	Predict(ctx context.Context, features domain.FeatureVector) (domain.MLPrediction, error)
	CheckReadiness(ctx context.Context) error
}

// Analyzer runs the generative-AI analysis. A nil Analyzer on the Service
// means the feature is disabled.
type Analyzer interface {
	Analyze(ctx context.Context, weather domain.WeatherSnapshot, ml domain.MLPrediction, station domain.ReferenceStation) (*domain.AIAnalysis, error)
}

// Notifier dispatches alert SMS messages.
type Notifier interface {
	SendAlert(ctx context.Context, phoneNumber string, outcome domain.PredictionOutcome) (domain.NotificationReceipt, error)
}

// AlertPublisher records completed assessments for downstream consumers.
type AlertPublisher interface {
	PublishAssessment(ctx context.Context, outcome domain.PredictionOutcome) error
}

// Request is one frost analysis request.
type Request struct {
	Latitude     float64
	Longitude    float64
	LocationName string
	PhoneNumber  string
}

// Service orchestrates analysis requests. Analyzer, Notifier and
// AlertPublisher are optional; a nil value disables the corresponding step.
type Service struct {
	station    domain.ReferenceStation
	weather    WeatherProvider
	classifier Classifier
	analyzer   Analyzer
	notifier   Notifier
	publisher  AlertPublisher
	history    *domain.HistoryStore
	track      *tracker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewService wires the orchestrator.
func NewService(station domain.ReferenceStation, weather WeatherProvider, classifier Classifier, analyzer Analyzer, notifier Notifier, publisher AlertPublisher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		station:    station,
		weather:    weather,
		classifier: classifier,
		analyzer:   analyzer,
		notifier:   notifier,
		publisher:  publisher,
		history:    domain.NewHistoryStore(),
		track:      newTracker(),
		metrics:    metrics,
		logger:     logger,
	}
}

// Station returns the reference station the service validates against.
func (s *Service) Station() domain.ReferenceStation {
	return s.station
}

// ValidateLocation checks a point against the coverage geofence without
// running an analysis.
func (s *Service) ValidateLocation(lat, lon float64) (domain.ValidationResult, error) {
	return domain.ValidateLocation(lat, lon, s.station)
}

// Predict runs the full analysis for a request. Out-of-coverage locations
// yield a degraded outcome, not an error. A request displaced by a newer
// one for the same location returns ErrSuperseded.
func (s *Service) Predict(ctx context.Context, req Request) (domain.PredictionOutcome, error) {
	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID, "lat", req.Latitude, "lon", req.Longitude)

	validation, err := domain.ValidateLocation(req.Latitude, req.Longitude, s.station)
	if err != nil {
		s.metrics.PredictRequests.WithLabelValues("invalid_input").Inc()
		return domain.PredictionOutcome{}, err
	}

	outcome := domain.PredictionOutcome{
		RequestID:  requestID,
		Validation: validation,
		Station:    s.station,
		Location: domain.Location{
			Name:      req.LocationName,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
		},
	}

	if !validation.IsValid {
		logger.Info("location outside coverage", "distance_km", validation.DistanceKM)
		s.metrics.PredictRequests.WithLabelValues("out_of_coverage").Inc()
		outcome.Suggestion = outOfCoverageSuggestion
		return outcome, nil
	}

	key := domain.LocationKey(req.Latitude, req.Longitude)
	reqCtx, gen := s.track.begin(ctx, key)
	defer s.track.finish(key, gen)

	weather, err := s.weather.FrostRiskData(reqCtx, req.Latitude, req.Longitude)
	if err != nil {
		return domain.PredictionOutcome{}, s.failure(key, gen, "weather_error", fmt.Errorf("fetch weather: %w", err))
	}
	outcome.Weather = &weather

	s.history.Record(key, weather.Current)
	features := s.history.Features(key, weather.Current)

	ml, err := s.classifier.Predict(reqCtx, features)
	if err != nil {
		return domain.PredictionOutcome{}, s.failure(key, gen, "classifier_error", fmt.Errorf("classify: %w", err))
	}
	outcome.ML = &ml

	var ai *domain.AIAnalysis
	if s.analyzer != nil {
		ai, err = s.analyzer.Analyze(reqCtx, weather, ml, s.station)
		if err != nil {
			logger.Warn("ai analysis unavailable, degrading to classifier only", "error", err)
			s.metrics.AIFallbacks.Inc()
			ai = nil
		}
	}
	outcome.AI = ai

	assessment, err := domain.Assess(ml, ai)
	if err != nil {
		return domain.PredictionOutcome{}, s.failure(key, gen, "assessment_error", err)
	}
	outcome.Assessment = &assessment
	outcome.Available = true
	s.metrics.RiskClasses.WithLabelValues(assessment.RiskClass.String()).Inc()

	if req.PhoneNumber != "" {
		outcome.Alert = s.dispatchAlert(reqCtx, req.PhoneNumber, outcome)
	}

	if !s.track.isCurrent(key, gen) {
		s.metrics.PredictRequests.WithLabelValues("superseded").Inc()
		return domain.PredictionOutcome{}, ErrSuperseded
	}

	if s.publisher != nil {
		if err := s.publisher.PublishAssessment(ctx, outcome); err != nil {
			logger.Warn("audit publish failed", "error", err)
		}
	}

	logger.Info("analysis complete",
		"risk_class", assessment.RiskClass,
		"probability_pct", assessment.FrostProbabilityPct,
		"confidence_pct", assessment.SystemConfidencePct,
		"sources_agree", assessment.SourcesAgree)
	s.metrics.PredictRequests.WithLabelValues("ok").Inc()
	return outcome, nil
}

// failure maps collaborator errors, preferring ErrSuperseded when the
// request was displaced mid-flight.
func (s *Service) failure(key string, gen uint64, label string, err error) error {
	if !s.track.isCurrent(key, gen) {
		s.metrics.PredictRequests.WithLabelValues("superseded").Inc()
		return ErrSuperseded
	}
	s.metrics.PredictRequests.WithLabelValues(label).Inc()
	return err
}

// dispatchAlert gates and, when allowed, dispatches the SMS for a completed
// request. A failed dispatch is recorded on the outcome, never returned as
// an error.
func (s *Service) dispatchAlert(ctx context.Context, phoneNumber string, outcome domain.PredictionOutcome) *domain.AlertOutcome {
	decision := domain.DecideAlert(outcome.Validation, phoneNumber, outcome.Assessment)
	alert := &domain.AlertOutcome{Decision: decision}

	if !decision.ShouldSend {
		return alert
	}
	if s.notifier == nil {
		alert.Error = "sms dispatch disabled"
		return alert
	}

	receipt, err := s.notifier.SendAlert(ctx, phoneNumber, outcome)
	if err != nil {
		s.logger.Warn("alert dispatch failed", "error", err)
		s.metrics.AlertFailures.Inc()
		alert.Error = err.Error()
		return alert
	}

	s.metrics.AlertsSent.Inc()
	alert.Sent = true
	alert.Receipt = &receipt
	return alert
}

// SendAlert dispatches an SMS for an already-computed outcome, without the
// automatic gate. The phone number format is still enforced.
func (s *Service) SendAlert(ctx context.Context, phoneNumber string, outcome domain.PredictionOutcome) (domain.NotificationReceipt, error) {
	if !domain.ValidPhoneNumber(phoneNumber) {
		return domain.NotificationReceipt{}, fmt.Errorf("%w: phone number must be 9 digits starting with 9", domain.ErrInvalidInput)
	}
	// Callers supply the outcome; an available prediction must carry the
	// assessment and weather the message is built from.
	if outcome.Available && (outcome.Assessment == nil || outcome.Weather == nil) {
		return domain.NotificationReceipt{}, fmt.Errorf("%w: available prediction missing assessment or weather", domain.ErrInvalidInput)
	}
	if s.notifier == nil {
		return domain.NotificationReceipt{}, fmt.Errorf("%w: sms dispatch disabled", domain.ErrNotificationFailed)
	}

	receipt, err := s.notifier.SendAlert(ctx, phoneNumber, outcome)
	if err != nil {
		s.metrics.AlertFailures.Inc()
		return domain.NotificationReceipt{}, err
	}
	s.metrics.AlertsSent.Inc()
	return receipt, nil
}

// CheckReadiness probes the collaborators a prediction cannot run without.
func (s *Service) CheckReadiness(ctx context.Context) error {
	return s.classifier.CheckReadiness(ctx)
}
