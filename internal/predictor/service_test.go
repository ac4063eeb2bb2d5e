package predictor_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wayrafrost/frost-alert-service/internal/domain"
	"github.com/wayrafrost/frost-alert-service/internal/observability"
	"github.com/wayrafrost/frost-alert-service/internal/predictor"
)

// --- mocks ---

type mockWeather struct {
	snapshot   domain.WeatherSnapshot
	err        error
	calls      atomic.Int64
	started    chan struct{}
	blockFirst bool
}

func (m *mockWeather) FrostRiskData(ctx context.Context, lat, lon float64) (domain.WeatherSnapshot, error) {
	call := m.calls.Add(1)
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.blockFirst && call == 1 {
		<-ctx.Done()
		return domain.WeatherSnapshot{}, ctx.Err()
	}
	if m.err != nil {
		return domain.WeatherSnapshot{}, m.err
	}
	return m.snapshot, nil
}

type mockClassifier struct {
	prediction domain.MLPrediction
	err        error
	healthErr  error
	features   domain.FeatureVector
}

func (m *mockClassifier) Predict(_ context.Context, features domain.FeatureVector) (domain.MLPrediction, error) {
	m.features = features
	if m.err != nil {
		return domain.MLPrediction{}, m.err
	}
	return m.prediction, nil
}

func (m *mockClassifier) CheckReadiness(_ context.Context) error {
	return m.healthErr
}

type mockAnalyzer struct {
	analysis *domain.AIAnalysis
	err      error
	calls    int
}

func (m *mockAnalyzer) Analyze(_ context.Context, _ domain.WeatherSnapshot, _ domain.MLPrediction, _ domain.ReferenceStation) (*domain.AIAnalysis, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.analysis, nil
}

type mockNotifier struct {
	receipt domain.NotificationReceipt
	err     error
	sentTo  []string
}

func (m *mockNotifier) SendAlert(_ context.Context, phoneNumber string, _ domain.PredictionOutcome) (domain.NotificationReceipt, error) {
	m.sentTo = append(m.sentTo, phoneNumber)
	if m.err != nil {
		return domain.NotificationReceipt{}, m.err
	}
	return m.receipt, nil
}

type mockPublisher struct {
	published []domain.PredictionOutcome
	err       error
}

func (m *mockPublisher) PublishAssessment(_ context.Context, outcome domain.PredictionOutcome) error {
	m.published = append(m.published, outcome)
	return m.err
}

// --- fixtures ---

func huayaoStation() domain.ReferenceStation {
	return domain.ReferenceStation{
		Name:          "Huayao",
		Institution:   "IGP",
		Latitude:      -12.0383,
		Longitude:     -75.3228,
		Elevation:     3350,
		ValidRadiusKM: 50,
	}
}

func sampleSnapshot() domain.WeatherSnapshot {
	return domain.WeatherSnapshot{
		Current: domain.Observation{
			Temperature: 1.2,
			Humidity:    85,
			WindSpeed:   5.0,
			WeatherCode: 0,
		},
		Elevation: 3350,
	}
}

func samplePrediction() domain.MLPrediction {
	return domain.MLPrediction{
		ClassName:  domain.Riesgo,
		Confidence: 0.8,
		Probabilities: map[string]float64{
			"SinRiesgo": 0.2, "Riesgo": 0.8, "Moderada": 0.0, "Severa": 0.0,
		},
	}
}

func sampleAnalysis() *domain.AIAnalysis {
	prob := 80.0
	return &domain.AIAnalysis{
		ClasificacionFinal:   domain.Riesgo,
		ProbabilidadEstimada: &prob,
		ConfianzaAnalisis:    domain.ConfianzaAlta,
	}
}

type testDeps struct {
	weather    *mockWeather
	classifier *mockClassifier
	analyzer   *mockAnalyzer
	notifier   *mockNotifier
	publisher  *mockPublisher
}

func newTestService(deps testDeps) *predictor.Service {
	var (
		analyzer  predictor.Analyzer
		notifier  predictor.Notifier
		publisher predictor.AlertPublisher
	)
	if deps.analyzer != nil {
		analyzer = deps.analyzer
	}
	if deps.notifier != nil {
		notifier = deps.notifier
	}
	if deps.publisher != nil {
		publisher = deps.publisher
	}
	return predictor.NewService(
		huayaoStation(),
		deps.weather,
		deps.classifier,
		analyzer,
		notifier,
		publisher,
		observability.NewMetricsForTesting(),
		slog.Default(),
	)
}

func insideRequest() predictor.Request {
	return predictor.Request{
		Latitude:     -12.0383,
		Longitude:    -75.3228,
		LocationName: "Huayao",
	}
}

// --- tests ---

func TestPredict_HappyPath(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{snapshot: sampleSnapshot()},
		classifier: &mockClassifier{prediction: samplePrediction()},
		analyzer:   &mockAnalyzer{analysis: sampleAnalysis()},
		notifier:   &mockNotifier{receipt: domain.NotificationReceipt{MessageSID: "SM1", Status: "queued"}},
		publisher:  &mockPublisher{},
	}
	svc := newTestService(deps)

	req := insideRequest()
	req.PhoneNumber = "987654321"

	outcome, err := svc.Predict(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, outcome.Available)
	assert.NotEmpty(t, outcome.RequestID)
	assert.True(t, outcome.Validation.IsValid)

	require.NotNil(t, outcome.Assessment)
	assert.Equal(t, domain.Riesgo, outcome.Assessment.RiskClass)
	assert.Equal(t, 80.0, outcome.Assessment.FrostProbabilityPct)
	assert.Equal(t, 85, outcome.Assessment.SystemConfidencePct)
	assert.True(t, outcome.Assessment.SourcesAgree)

	require.NotNil(t, outcome.Alert)
	assert.True(t, outcome.Alert.Decision.ShouldSend)
	assert.True(t, outcome.Alert.Sent)
	require.NotNil(t, outcome.Alert.Receipt)
	assert.Equal(t, "SM1", outcome.Alert.Receipt.MessageSID)
	assert.Equal(t, []string{"987654321"}, deps.notifier.sentTo)

	require.Len(t, deps.publisher.published, 1)
	assert.Equal(t, outcome.RequestID, deps.publisher.published[0].RequestID)
}

func TestPredict_OutOfCoverage(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{snapshot: sampleSnapshot()},
		classifier: &mockClassifier{prediction: samplePrediction()},
	}
	svc := newTestService(deps)

	// Lima, roughly 200 km from the station.
	outcome, err := svc.Predict(context.Background(), predictor.Request{
		Latitude:  -12.0464,
		Longitude: -77.0428,
	})
	require.NoError(t, err)

	assert.False(t, outcome.Available)
	assert.False(t, outcome.Validation.IsValid)
	assert.Greater(t, outcome.Validation.DistanceKM, 50.0)
	assert.NotEmpty(t, outcome.Suggestion)
	assert.Nil(t, outcome.Weather)
	assert.Nil(t, outcome.ML)
	assert.Nil(t, outcome.Assessment)
	assert.Equal(t, int64(0), deps.weather.calls.Load(), "no collaborator is consulted out of coverage")
}

func TestPredict_MalformedCoordinates(t *testing.T) {
	svc := newTestService(testDeps{
		weather:    &mockWeather{},
		classifier: &mockClassifier{},
	})

	_, err := svc.Predict(context.Background(), predictor.Request{Latitude: 91, Longitude: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPredict_AIDegradation(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{snapshot: sampleSnapshot()},
		classifier: &mockClassifier{prediction: samplePrediction()},
		analyzer:   &mockAnalyzer{err: domain.ErrAIUnavailable},
	}
	svc := newTestService(deps)

	outcome, err := svc.Predict(context.Background(), insideRequest())
	require.NoError(t, err)

	assert.True(t, outcome.Available)
	assert.Nil(t, outcome.AI)
	require.NotNil(t, outcome.Assessment)
	assert.Equal(t, domain.Riesgo, outcome.Assessment.RiskClass)
	assert.Equal(t, 80.0, outcome.Assessment.FrostProbabilityPct, "falls back to the class probabilities")
	assert.Equal(t, 75, outcome.Assessment.SystemConfidencePct)
}

func TestPredict_NoAnalyzerConfigured(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{snapshot: sampleSnapshot()},
		classifier: &mockClassifier{prediction: samplePrediction()},
	}
	svc := newTestService(deps)

	outcome, err := svc.Predict(context.Background(), insideRequest())
	require.NoError(t, err)
	assert.True(t, outcome.Available)
	assert.Nil(t, outcome.AI)
}

func TestPredict_WeatherError(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{err: errors.New("open-meteo down")},
		classifier: &mockClassifier{prediction: samplePrediction()},
	}
	svc := newTestService(deps)

	_, err := svc.Predict(context.Background(), insideRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch weather")
}

func TestPredict_ClassifierError(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{snapshot: sampleSnapshot()},
		classifier: &mockClassifier{err: domain.ErrMalformedPrediction},
	}
	svc := newTestService(deps)

	_, err := svc.Predict(context.Background(), insideRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedPrediction)
}

func TestPredict_NoPhoneSkipsAlert(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{snapshot: sampleSnapshot()},
		classifier: &mockClassifier{prediction: samplePrediction()},
		notifier:   &mockNotifier{},
	}
	svc := newTestService(deps)

	outcome, err := svc.Predict(context.Background(), insideRequest())
	require.NoError(t, err)
	assert.Nil(t, outcome.Alert)
	assert.Empty(t, deps.notifier.sentTo)
}

func TestPredict_InvalidPhoneGatesAlert(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{snapshot: sampleSnapshot()},
		classifier: &mockClassifier{prediction: samplePrediction()},
		notifier:   &mockNotifier{},
	}
	svc := newTestService(deps)

	req := insideRequest()
	req.PhoneNumber = "123456789"

	outcome, err := svc.Predict(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, outcome.Alert)
	assert.False(t, outcome.Alert.Decision.ShouldSend)
	assert.False(t, outcome.Alert.Sent)
	assert.Empty(t, deps.notifier.sentTo)
}

func TestPredict_AlertFailureIsNonFatal(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{snapshot: sampleSnapshot()},
		classifier: &mockClassifier{prediction: samplePrediction()},
		notifier:   &mockNotifier{err: domain.ErrNotificationFailed},
	}
	svc := newTestService(deps)

	req := insideRequest()
	req.PhoneNumber = "987654321"

	outcome, err := svc.Predict(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, outcome.Available)
	require.NotNil(t, outcome.Alert)
	assert.True(t, outcome.Alert.Decision.ShouldSend)
	assert.False(t, outcome.Alert.Sent)
	assert.NotEmpty(t, outcome.Alert.Error)
}

func TestPredict_PublishFailureIsNonFatal(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{snapshot: sampleSnapshot()},
		classifier: &mockClassifier{prediction: samplePrediction()},
		publisher:  &mockPublisher{err: errors.New("broker unreachable")},
	}
	svc := newTestService(deps)

	outcome, err := svc.Predict(context.Background(), insideRequest())
	require.NoError(t, err)
	assert.True(t, outcome.Available)
}

func TestPredict_SupersededByNewerRequest(t *testing.T) {
	deps := testDeps{
		weather: &mockWeather{
			snapshot:   sampleSnapshot(),
			blockFirst: true,
			started:    make(chan struct{}, 2),
		},
		classifier: &mockClassifier{prediction: samplePrediction()},
	}
	svc := newTestService(deps)

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Predict(context.Background(), insideRequest())
		firstErr <- err
	}()

	// Wait for the first request to reach the weather provider, then
	// displace it with a second request for the same location.
	<-deps.weather.started

	outcome, err := svc.Predict(context.Background(), insideRequest())
	require.NoError(t, err)
	assert.True(t, outcome.Available)

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, predictor.ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded request did not finish")
	}
}

func TestPredict_ClassifierReceivesFeatures(t *testing.T) {
	deps := testDeps{
		weather:    &mockWeather{snapshot: sampleSnapshot()},
		classifier: &mockClassifier{prediction: samplePrediction()},
	}
	svc := newTestService(deps)

	_, err := svc.Predict(context.Background(), insideRequest())
	require.NoError(t, err)

	require.NotNil(t, deps.classifier.features)
	assert.Equal(t, 85.0, deps.classifier.features["HR"])
}

func TestSendAlert(t *testing.T) {
	notifier := &mockNotifier{receipt: domain.NotificationReceipt{MessageSID: "SM2"}}
	svc := newTestService(testDeps{
		weather:    &mockWeather{},
		classifier: &mockClassifier{},
		notifier:   notifier,
	})

	receipt, err := svc.SendAlert(context.Background(), "987654321", domain.PredictionOutcome{})
	require.NoError(t, err)
	assert.Equal(t, "SM2", receipt.MessageSID)
}

func TestSendAlert_InvalidPhone(t *testing.T) {
	svc := newTestService(testDeps{
		weather:    &mockWeather{},
		classifier: &mockClassifier{},
		notifier:   &mockNotifier{},
	})

	_, err := svc.SendAlert(context.Background(), "+51987654321", domain.PredictionOutcome{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSendAlert_IncoherentPrediction(t *testing.T) {
	notifier := &mockNotifier{}
	svc := newTestService(testDeps{
		weather:    &mockWeather{},
		classifier: &mockClassifier{},
		notifier:   notifier,
	})

	// An available prediction with no assessment or weather cannot have
	// come from Predict; it must be rejected before dispatch.
	_, err := svc.SendAlert(context.Background(), "987654321", domain.PredictionOutcome{Available: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, notifier.sentTo)

	snapshot := sampleSnapshot()
	outcome := domain.PredictionOutcome{
		Available:  true,
		Weather:    &snapshot,
		Assessment: &domain.CombinedAssessment{RiskClass: domain.Riesgo},
	}
	_, err = svc.SendAlert(context.Background(), "987654321", outcome)
	require.NoError(t, err)
}

func TestSendAlert_SMSDisabled(t *testing.T) {
	svc := newTestService(testDeps{
		weather:    &mockWeather{},
		classifier: &mockClassifier{},
	})

	_, err := svc.SendAlert(context.Background(), "987654321", domain.PredictionOutcome{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotificationFailed)
}

func TestValidateLocation(t *testing.T) {
	svc := newTestService(testDeps{
		weather:    &mockWeather{},
		classifier: &mockClassifier{},
	})

	result, err := svc.ValidateLocation(-12.07, -75.21)
	require.NoError(t, err)
	assert.True(t, result.IsValid)

	result, err = svc.ValidateLocation(-12.0464, -77.0428)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
}

func TestCheckReadiness(t *testing.T) {
	classifier := &mockClassifier{healthErr: errors.New("model not loaded")}
	svc := newTestService(testDeps{
		weather:    &mockWeather{},
		classifier: classifier,
	})

	require.Error(t, svc.CheckReadiness(context.Background()))

	classifier.healthErr = nil
	require.NoError(t, svc.CheckReadiness(context.Background()))
}
