package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for RunPod client failures.
var (
	ErrUnreachable = errors.New("runpod unreachable")
	ErrAPIError    = errors.New("runpod api error")
	ErrTimeout     = errors.New("runpod request timeout")
	ErrNoJobID     = errors.New("runpod accepted submission without a job id")
)

// Remote job states reported by the serverless endpoint.
const (
	StatusQueued     = "QUEUED"
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusCancelled  = "CANCELLED"
	StatusTimedOut   = "TIMED_OUT"
)

// TerminalStatus reports whether a remote state will never change again.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// JobState is one poll of a remote job.
type JobState struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Client talks to a RunPod serverless endpoint over its run/status/cancel
// HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	endpointID string
	client     *http.Client
}

// NewClient creates a RunPod endpoint client. The timeout bounds each
// individual request, not the whole remote job.
func NewClient(baseURL, apiKey, endpointID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		endpointID: endpointID,
		client:     &http.Client{Timeout: timeout},
	}
}

// Submit enqueues a payload and returns the remote job id.
func (c *Client) Submit(ctx context.Context, input any) (string, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return "", fmt.Errorf("encoding submission: %w", err)
	}

	var state JobState
	if err := c.do(ctx, http.MethodPost, "run", bytes.NewReader(body), &state); err != nil {
		return "", err
	}
	if state.ID == "" {
		return "", ErrNoJobID
	}
	return state.ID, nil
}

// Status polls a remote job once.
func (c *Client) Status(ctx context.Context, remoteID string) (*JobState, error) {
	var state JobState
	if err := c.do(ctx, http.MethodGet, "status/"+remoteID, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Cancel requests termination of a remote job.
func (c *Client) Cancel(ctx context.Context, remoteID string) error {
	return c.do(ctx, http.MethodPost, "cancel/"+remoteID, nil, nil)
}

// Health checks the endpoint's health resource.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body *bytes.Reader, out any) error {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, c.endpointID, path)

	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = body
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
