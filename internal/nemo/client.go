// Package nemo is the REST client for the remote NeMo Data Designer
// service: job submission, status polling, previews, and results
// download.
package nemo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"datadesigner/internal/logging"
	"datadesigner/internal/schema"
)

// jobsPath is the job collection under the service base URL.
const jobsPath = "/v1beta1/data-designer/jobs"

// previewPath generates a small sample without creating a job.
const previewPath = "/v1beta1/data-designer/preview"

// Client talks to the data designer service.
type Client struct {
	baseURL    string
	project    string
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Project string
	Timeout time.Duration
}

// NewClient creates a data designer service client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	project := cfg.Project
	if project == "" {
		project = schema.DefaultProject
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		project: project,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Project returns the project jobs are submitted under.
func (c *Client) Project() string { return c.project }

// doJSON performs an HTTP request with rate limiting and retry on 429
// and 5xx responses. Returns the response body for 2xx, *APIError
// otherwise.
func (c *Client) doJSON(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	// Rate limiting: at least 200ms between requests
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 200*time.Millisecond {
		time.Sleep(200*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s, 4s
			select {
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		logging.APIDebug("%s %s (attempt %d)", method, url, i+1)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if apiErr.IsRetryable() {
			logging.APIDebug("retryable status %d from %s", resp.StatusCode, url)
			lastErr = apiErr
			continue
		}
		logging.APIError("%s %s: %v", method, url, apiErr)
		return nil, apiErr
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// CreateJob submits a generation job and returns its id.
func (c *Client) CreateJob(ctx context.Context, payload *schema.WirePayload) (string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "CreateJob")
	defer timer.StopWithInfo()

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	respBody, err := c.doJSON(ctx, http.MethodPost, c.baseURL+jobsPath, data)
	if err != nil {
		return "", err
	}

	// Job id key varies across service versions
	var resp map[string]interface{}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parse submission response: %w", err)
	}
	for _, key := range []string{"id", "job_id", "uuid"} {
		if id, ok := resp[key].(string); ok && id != "" {
			logging.API("job submitted: %s (name %q)", id, payload.Name)
			return id, nil
		}
	}
	return "", ErrNoJobID
}

// JobDetail is the service's view of a job.
type JobDetail struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	ErrorDetails string `json:"error_details,omitempty"`
}

// GetJob fetches full job details.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobDetail, error) {
	respBody, err := c.doJSON(ctx, http.MethodGet, c.baseURL+jobsPath+"/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	var detail JobDetail
	if err := json.Unmarshal(respBody, &detail); err != nil {
		return nil, fmt.Errorf("parse job detail: %w", err)
	}
	if detail.ID == "" {
		detail.ID = jobID
	}
	return &detail, nil
}

// GetJobStatus returns the job's current status string. It prefers the
// lightweight status endpoint and falls back to the job detail when the
// service does not expose one.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (string, error) {
	respBody, err := c.doJSON(ctx, http.MethodGet, c.baseURL+jobsPath+"/"+jobID+"/status", nil)
	if err == nil {
		var resp struct {
			Status string `json:"status"`
		}
		if jerr := json.Unmarshal(respBody, &resp); jerr == nil && resp.Status != "" {
			return strings.ToLower(resp.Status), nil
		}
	}

	var apiErr *APIError
	if err != nil && (!errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound) {
		return "", err
	}

	detail, err := c.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	return strings.ToLower(detail.Status), nil
}

// CancelJob requests cancellation of a running job.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	_, err := c.doJSON(ctx, http.MethodPost, c.baseURL+jobsPath+"/"+jobID+"/cancel", nil)
	if err == nil {
		logging.API("job %s cancel requested", jobID)
	}
	return err
}

// GetJobLogs fetches the job's execution logs as plain text.
func (c *Client) GetJobLogs(ctx context.Context, jobID string) (string, error) {
	respBody, err := c.doJSON(ctx, http.MethodGet, c.baseURL+jobsPath+"/"+jobID+"/logs", nil)
	if err != nil {
		return "", err
	}
	return string(respBody), nil
}

// Preview generates a small sample of records for the given wire config
// without creating a persistent job. The service streams JSON lines.
func (c *Client) Preview(ctx context.Context, cfg map[string]interface{}, numRecords int) ([]map[string]interface{}, error) {
	if numRecords <= 0 {
		numRecords = 10
	}
	body, err := json.Marshal(map[string]interface{}{
		"project":     c.project,
		"config":      cfg,
		"num_records": numRecords,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal preview request: %w", err)
	}

	respBody, err := c.doJSON(ctx, http.MethodPost, c.baseURL+previewPath, body)
	if err != nil {
		return nil, err
	}
	return ParseJSONL(respBody)
}

// Health checks service reachability.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return nil
}

// ParseJSONL decodes newline-delimited JSON records, tolerating a plain
// JSON array body as well.
func ParseJSONL(data []byte) ([]map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []map[string]interface{}{}, nil
	}

	if trimmed[0] == '[' {
		var records []map[string]interface{}
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("parse record array: %w", err)
		}
		return records, nil
	}

	var records []map[string]interface{}
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parse jsonl line: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Terminal status sets (lowercased).
var (
	successStatuses = map[string]bool{"completed": true, "success": true, "succeeded": true}
	failureStatuses = map[string]bool{"failed": true, "error": true, "cancelled": true}
)

// IsTerminalSuccess reports whether a status means the job finished and
// produced results.
func IsTerminalSuccess(status string) bool {
	return successStatuses[strings.ToLower(status)]
}

// IsTerminalFailure reports whether a status means the job will never
// produce results.
func IsTerminalFailure(status string) bool {
	return failureStatuses[strings.ToLower(status)]
}

// IsTerminal reports whether polling should stop for this status.
func IsTerminal(status string) bool {
	return IsTerminalSuccess(status) || IsTerminalFailure(status)
}
