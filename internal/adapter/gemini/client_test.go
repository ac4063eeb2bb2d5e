package gemini

import (
	"context"
	"encoding/json"
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

const analysisJSON = `{
	"clasificacion_final": "Moderada",
	"probabilidad_estimada": 72.5,
	"confianza_analisis": "alta",
	"discrepancia_ml": "",
	"resumen_ejecutivo": "Cielo despejado y humedad alta favorecen helada radiativa esta madrugada.",
	"factores_riesgo": [
		{"factor": "cielo despejado", "impacto": "alto", "descripcion": "máxima pérdida radiativa nocturna"}
	],
	"horas_criticas": [
		{"hora": "04:00", "temperatura_esperada": -1.5, "riesgo": "alto"}
	],
	"recomendaciones": [
		{"prioridad": 1, "accion": "Regar los cultivos antes del anochecer", "urgencia": "inmediata"}
	]
}`

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

func sampleInputs() (domain.WeatherSnapshot, domain.MLPrediction) {
	temp := -1.5
	weather := domain.WeatherSnapshot{
		Current:   domain.Observation{Temperature: 2.1, Humidity: 85, WeatherCode: 0},
		Elevation: 3350,
		Summary: domain.ForecastSummary{
			NightHoursCount:        14,
			FrostRiskHoursCount:    3,
			MinTemperatureForecast: &temp,
		},
	}
	ml := domain.MLPrediction{
		ClassName:  domain.Riesgo,
		Confidence: 0.78,
		Probabilities: map[string]float64{
			"SinRiesgo": 0.10, "Riesgo": 0.78, "Moderada": 0.10, "Severa": 0.02,
		},
	}
	return weather, ml
}

func candidateBody(text string) string {
	resp := generateResponse{
		Candidates: []candidate{{Content: content{Parts: []part{{Text: text}}}}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newTestClient(baseURL string) *Client {
	client := NewClient("test-key", "gemini-2.0-flash", 5*time.Second, observability.NewMetricsForTesting(), slog.Default())
	client.SetBaseURL(baseURL)
	return client
}

func TestAnalyze(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Contents)
		gotPrompt = req.Contents[0].Parts[0].Text

		w.Write([]byte(candidateBody(analysisJSON)))
	}))
	defer server.Close()

	weather, ml := sampleInputs()
	analysis, err := newTestClient(server.URL).Analyze(context.Background(), weather, ml, huayaoStation())
	require.NoError(t, err)

	assert.Equal(t, domain.Moderada, analysis.ClasificacionFinal)
	require.NotNil(t, analysis.ProbabilidadEstimada)
	assert.Equal(t, 72.5, *analysis.ProbabilidadEstimada)
	assert.Equal(t, domain.ConfianzaAlta, analysis.ConfianzaAnalisis)
	require.Len(t, analysis.Recomendaciones, 1)
	assert.Equal(t, "inmediata", analysis.Recomendaciones[0].Urgencia)

	assert.Contains(t, gotPrompt, "Huayao")
	assert.Contains(t, gotPrompt, "Clasificación: Riesgo")
	assert.Contains(t, gotPrompt, "clasificacion_final")
}

func TestAnalyze_MarkdownFencedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateBody("```json\n" + analysisJSON + "\n```")))
	}))
	defer server.Close()

	weather, ml := sampleInputs()
	analysis, err := newTestClient(server.URL).Analyze(context.Background(), weather, ml, huayaoStation())
	require.NoError(t, err)
	assert.Equal(t, domain.Moderada, analysis.ClasificacionFinal)
}

func TestAnalyze_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			},
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"candidates": []}`))
			},
		},
		{
			name: "non-json analysis",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(candidateBody("lo siento, no puedo analizar estos datos")))
			},
		},
		{
			name: "missing final classification",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(candidateBody(`{"confianza_analisis": "alta"}`)))
			},
		},
		{
			name: "unknown risk class",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(candidateBody(`{"clasificacion_final": "Extrema"}`)))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			weather, ml := sampleInputs()
			_, err := newTestClient(server.URL).Analyze(context.Background(), weather, ml, huayaoStation())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrAIUnavailable)
		})
	}
}

func TestBuildPrompt_NoFrostHours(t *testing.T) {
	weather, ml := sampleInputs()
	weather.Summary.FrostRiskHours = nil

	prompt := buildPrompt(weather, ml, huayaoStation())
	assert.Contains(t, prompt, "No se detectaron horas con riesgo inmediato")
	assert.True(t, strings.Contains(prompt, "probabilidad_estimada"))
}
