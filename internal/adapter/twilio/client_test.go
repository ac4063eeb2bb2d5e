package twilio

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wayrafrost/frost-alert-service/internal/domain"
	"github.com/wayrafrost/frost-alert-service/internal/observability"
)

func newTestClient(baseURL string) *Client {
	client := NewClient("AC123", "token", "+15005550006", observability.NewMetricsForTesting(), slog.Default())
	client.SetBaseURL(baseURL)
	return client
}

func TestSendSMS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+51987654321", r.PostForm.Get("To"))
		assert.Equal(t, "+15005550006", r.PostForm.Get("From"))
		assert.Equal(t, "prueba", r.PostForm.Get("Body"))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "SM42", "status": "queued"}`))
	}))
	defer server.Close()

	receipt, err := newTestClient(server.URL).SendSMS(context.Background(), "987654321", "prueba")
	require.NoError(t, err)

	assert.Equal(t, "SM42", receipt.MessageSID)
	assert.Equal(t, "queued", receipt.Status)
	assert.Equal(t, "987654321", receipt.PhoneNumber)
	assert.Equal(t, len("prueba"), receipt.MessageLength)
}

func TestSendSMS_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code": 21608, "message": "unverified number"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SendSMS(context.Background(), "987654321", "prueba")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotificationFailed)
	assert.Contains(t, err.Error(), "status 400")
}

func TestInternationalize(t *testing.T) {
	assert.Equal(t, "+51987654321", internationalize("987654321"))
	assert.Equal(t, "+51987654321", internationalize("+51987654321"))
}

func TestBuildAlertMessage_Prediction(t *testing.T) {
	now := time.Date(2026, 6, 15, 18, 30, 0, 0, time.UTC)

	forecast := make([]domain.ForecastHour, 24)
	for i := range forecast {
		temp := 5.0 - float64(i)*0.3
		forecast[i] = domain.ForecastHour{Temperature: &temp}
	}

	outcome := domain.PredictionOutcome{
		Available: true,
		Weather: &domain.WeatherSnapshot{
			Current:  domain.Observation{Temperature: 3.2},
			Forecast: forecast,
		},
		Assessment: &domain.CombinedAssessment{RiskClass: domain.Moderada},
	}

	message := BuildAlertMessage(outcome, now)
	assert.Contains(t, message, "WayraFrost")
	assert.Contains(t, message, "Moderada")
	assert.Contains(t, message, "Ahora:3.2C")
	assert.Contains(t, message, "15/06 18:30")
	assert.LessOrEqual(t, len(message), smsMaxLength)
}

func TestBuildAlertMessage_ShortForecastUsesPlaceholder(t *testing.T) {
	outcome := domain.PredictionOutcome{
		Available: true,
		Weather: &domain.WeatherSnapshot{
			Current: domain.Observation{Temperature: 1.0},
		},
		Assessment: &domain.CombinedAssessment{RiskClass: domain.Severa},
	}

	message := BuildAlertMessage(outcome, time.Now())
	assert.Contains(t, message, "12h:?C")
	assert.Contains(t, message, "24h:?C")
}

func TestBuildAlertMessage_OutOfCoverage(t *testing.T) {
	outcome := domain.PredictionOutcome{
		Available:  false,
		Validation: domain.ValidationResult{IsValid: false, DistanceKM: 87.3},
	}

	message := BuildAlertMessage(outcome, time.Now())
	assert.Contains(t, message, "FUERA DE COBERTURA")
	assert.Contains(t, message, "87km de estacion")
	assert.Contains(t, message, "Solo valido en Junin")
	assert.False(t, strings.Contains(message, "RIESGO:"))
	assert.LessOrEqual(t, len(message), smsMaxLength)
}
