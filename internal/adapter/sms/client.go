// Package sms is the HTTP client for the external SMS gateway.
package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client sends messages through the gateway's form-encoded send endpoint.
// It implements notify.Gateway.
type Client struct {
	apiURL     string
	apiKey     string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an SMS gateway client.
func NewClient(apiURL, apiKey, deviceID string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiURL:   apiURL,
		apiKey:   apiKey,
		deviceID: deviceID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Send delivers one message to one phone number. Non-200 gateway responses
// are returned as errors so the dispatcher can count them as failures.
func (c *Client) Send(ctx context.Context, phone, message string) error {
	form := url.Values{
		"message":       {message},
		"mobile_number": {phone},
		"device":        {c.deviceID},
		"device_sim":    {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway error: status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// NopGateway drops messages, used when no gateway is configured. Dry runs
// are logged so operators can see what would have been sent.
type NopGateway struct {
	Logger *slog.Logger
}

func (n *NopGateway) Send(_ context.Context, phone, _ string) error {
	n.Logger.Info("sms gateway disabled, dropping message", "phone", phone)
	return nil
}
