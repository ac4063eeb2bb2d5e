// Package inference calls the frost classifier model server over HTTP.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wayrafrost/frost-alert-service/internal/domain"
	"github.com/wayrafrost/frost-alert-service/internal/observability"
)

// Client implements the predictor's Classifier using the model server's
// REST interface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a model-server client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Predict submits a feature vector and returns the classifier's verdict.
// Responses that do not carry a known class and a full probability map are
// reported as domain.ErrMalformedPrediction.
func (c *Client) Predict(ctx context.Context, features domain.FeatureVector) (domain.MLPrediction, error) {
	start := time.Now()
	defer func() {
		c.metrics.CollaboratorDuration.WithLabelValues("classifier").Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(predictRequest{Features: features})
	if err != nil {
		return domain.MLPrediction{}, fmt.Errorf("marshal features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return domain.MLPrediction{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.MLPrediction{}, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.MLPrediction{}, fmt.Errorf("classifier error: status %d: %s", resp.StatusCode, body)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.MLPrediction{}, fmt.Errorf("%w: decode response: %v", domain.ErrMalformedPrediction, err)
	}

	return pr.toDomain()
}

// CheckReadiness probes the model server's health endpoint.
func (c *Client) CheckReadiness(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Model server request/response types.

type predictRequest struct {
	Features domain.FeatureVector `json:"features"`
}

type predictResponse struct {
	ClassName     string             `json:"class_name"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

func (pr predictResponse) toDomain() (domain.MLPrediction, error) {
	class, err := domain.ParseRiskClass(pr.ClassName)
	if err != nil {
		return domain.MLPrediction{}, fmt.Errorf("%w: class %q", domain.ErrMalformedPrediction, pr.ClassName)
	}
	if pr.Confidence < 0 || pr.Confidence > 1 {
		return domain.MLPrediction{}, fmt.Errorf("%w: confidence %v outside [0,1]", domain.ErrMalformedPrediction, pr.Confidence)
	}
	if len(pr.Probabilities) == 0 {
		return domain.MLPrediction{}, fmt.Errorf("%w: empty probability map", domain.ErrMalformedPrediction)
	}
	return domain.MLPrediction{
		ClassName:     class,
		Confidence:    pr.Confidence,
		Probabilities: pr.Probabilities,
	}, nil
}
