// Package gemini runs the generative-AI frost analysis against Google's
// Gemini REST API and parses its structured Spanish verdict.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wayrafrost/frost-alert-service/internal/domain"
	"github.com/wayrafrost/frost-alert-service/internal/observability"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client implements the predictor's Analyzer using Gemini's generateContent
// endpoint. All failures are reported as domain.ErrAIUnavailable so callers
// degrade to the classifier-only path.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Gemini client for the given model.
func NewClient(apiKey, model string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// SetBaseURL overrides the API endpoint. Tests only.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Analyze asks Gemini to assess frost risk given the weather snapshot and
// the classifier's verdict, and decodes its structured JSON reply.
func (c *Client) Analyze(ctx context.Context, weather domain.WeatherSnapshot, ml domain.MLPrediction, station domain.ReferenceStation) (*domain.AIAnalysis, error) {
	start := time.Now()
	defer func() {
		c.metrics.CollaboratorDuration.WithLabelValues("ai").Observe(time.Since(start).Seconds())
	}()

	prompt := buildPrompt(weather, ml, station)

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      0.3,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrAIUnavailable, err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrAIUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrAIUnavailable, resp.StatusCode, respBody)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrAIUnavailable, err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty candidate list", domain.ErrAIUnavailable)
	}

	return parseAnalysis(gr.Candidates[0].Content.Parts[0].Text)
}

// parseAnalysis decodes the model's JSON text into the analysis structure.
// Some model versions wrap the JSON in markdown fences despite the response
// mime type, so fences are stripped first.
func parseAnalysis(text string) (*domain.AIAnalysis, error) {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var probe struct {
		ClasificacionFinal *string `json:"clasificacion_final"`
	}
	if err := json.Unmarshal([]byte(clean), &probe); err != nil {
		return nil, fmt.Errorf("%w: parse analysis: %v", domain.ErrAIUnavailable, err)
	}
	if probe.ClasificacionFinal == nil {
		return nil, fmt.Errorf("%w: analysis missing clasificacion_final", domain.ErrAIUnavailable)
	}

	var analysis domain.AIAnalysis
	if err := json.Unmarshal([]byte(clean), &analysis); err != nil {
		return nil, fmt.Errorf("%w: parse analysis: %v", domain.ErrAIUnavailable, err)
	}
	return &analysis, nil
}

// Gemini API request/response types.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}
