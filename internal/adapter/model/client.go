// Package model talks to the out-of-process inference server hosting the
// pretrained rainfall regression model.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client implements forecast.Model against the inference server's HTTP API.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an inference client for the given prediction endpoint.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type predictRequest struct {
	Sequence [][]float64 `json:"sequence"`
}

type predictResponse struct {
	Outputs []float64 `json:"outputs"`
	Error   string    `json:"error,omitempty"`
}

// Predict sends the standardized feature tensor and returns the two scaled
// regression targets.
func (c *Client) Predict(ctx context.Context, sequence [][]float64) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Sequence: sequence})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("inference server error: status %d: %s", resp.StatusCode, msg)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if pr.Error != "" {
		return nil, fmt.Errorf("inference server: %s", pr.Error)
	}
	if len(pr.Outputs) != 2 {
		return nil, fmt.Errorf("inference server returned %d outputs, want 2", len(pr.Outputs))
	}
	return pr.Outputs, nil
}
