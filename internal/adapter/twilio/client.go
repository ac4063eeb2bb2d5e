// Package twilio dispatches frost alert SMS messages through the Twilio
// REST API.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wayrafrost/frost-alert-service/internal/domain"
	"github.com/wayrafrost/frost-alert-service/internal/observability"
)

const defaultBaseURL = "https://api.twilio.com"

// countryPrefix is prepended to bare national numbers at dispatch time.
// Callers validate the national 9-digit format; the prefix is a transport
// concern and never part of the domain representation.
const countryPrefix = "+51"

// Client implements the predictor's Notifier using Twilio's Messages
// endpoint.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Twilio SMS client.
func NewClient(accountSID, authToken, fromNumber string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
		logger:  logger,
	}
}

// SetBaseURL overrides the API endpoint. Tests only.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetClock overrides the message timestamp clock. Tests only.
func (c *Client) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

// SendAlert composes the alert message for a prediction outcome and
// dispatches it to the given national phone number.
func (c *Client) SendAlert(ctx context.Context, phoneNumber string, outcome domain.PredictionOutcome) (domain.NotificationReceipt, error) {
	return c.SendSMS(ctx, phoneNumber, BuildAlertMessage(outcome, c.clock.Now()))
}

// SendSMS dispatches body to the given national phone number. Failures are
// reported as domain.ErrNotificationFailed; callers treat a failed dispatch
// as non-fatal to the assessment it accompanies.
func (c *Client) SendSMS(ctx context.Context, phoneNumber, body string) (domain.NotificationReceipt, error) {
	start := time.Now()
	defer func() {
		c.metrics.CollaboratorDuration.WithLabelValues("sms").Observe(time.Since(start).Seconds())
	}()

	to := internationalize(phoneNumber)

	form := url.Values{
		"To":   {to},
		"From": {c.fromNumber},
		"Body": {body},
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("%w: create request: %v", domain.ErrNotificationFailed, err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.NotificationReceipt{}, fmt.Errorf("%w: status %d: %s", domain.ErrNotificationFailed, resp.StatusCode, respBody)
	}

	var mr messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("%w: decode response: %v", domain.ErrNotificationFailed, err)
	}

	c.logger.Info("sms dispatched", "to", to, "sid", mr.SID, "status", mr.Status, "length", len(body))
	return domain.NotificationReceipt{
		MessageSID:    mr.SID,
		PhoneNumber:   phoneNumber,
		Status:        mr.Status,
		MessageLength: len(body),
	}, nil
}

// internationalize converts a bare national number to E.164. Numbers that
// already carry a plus sign pass through unchanged.
func internationalize(phoneNumber string) string {
	if strings.HasPrefix(phoneNumber, "+") {
		return phoneNumber
	}
	return countryPrefix + phoneNumber
}

// Twilio API response type.

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}
