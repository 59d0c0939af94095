package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPClient wraps http.Client with the JSON conventions of the krpace API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// do sends a request with an optional JSON body and decodes a JSON reply
// into out when the status is one of want. It returns the status code.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any, want ...int) (int, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	for _, code := range want {
		if resp.StatusCode != code {
			continue
		}
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return resp.StatusCode, nil
	}
	return resp.StatusCode, fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, method, path, resp.StatusCode, bytes.TrimSpace(raw))
}

type ackResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

type boardEntry struct {
	KeyResult struct {
		ID           string  `json:"id"`
		CurrentValue float64 `json:"current_value"`
	} `json:"key_result"`
	Progress struct {
		Progress   float64 `json:"progress"`
		PaceStatus string  `json:"pace_status"`
		PaceLabel  string  `json:"pace_label"`
	} `json:"progress"`
}

func checkInsPath(krID string) string {
	return "/key-results/" + url.PathEscape(krID) + "/check-ins"
}

func quarterTargetPath(krID string, quarter int) string {
	return "/key-results/" + url.PathEscape(krID) + "/quarter-targets/" + strconv.Itoa(quarter)
}

// submitCheckIn posts one check-in and classifies the reply.
func (c *HTTPClient) submitCheckIn(ctx context.Context, j job) string {
	var ack ackResponse
	code, err := c.do(ctx, http.MethodPost, checkInsPath(j.CheckIn.KeyResultID), j.CheckIn, &ack,
		http.StatusAccepted, http.StatusOK)
	switch {
	case code == http.StatusTooManyRequests:
		return outcomeRejected
	case err != nil:
		return outcomeFailed
	case code == http.StatusOK || ack.Duplicate:
		return outcomeDuplicate
	default:
		return outcomeAccepted
	}
}
