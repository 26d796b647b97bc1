// Package speech wraps the transcription and synthesis services behind the
// voice endpoints.
package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/replicate/replicate-go"
)

const (
	// DefaultPollInterval is the wait between prediction status checks.
	DefaultPollInterval = time.Second

	// DefaultMaxAttempts bounds how many status checks are made per job.
	DefaultMaxAttempts = 60
)

var (
	// ErrMissingCredentials is returned when a service has no API credentials.
	ErrMissingCredentials = errors.New("speech credentials not configured")

	// ErrTimeout is returned when a job is still running after the attempt ceiling.
	ErrTimeout = errors.New("prediction timed out")
)

// Prediction statuses reported by Replicate.
const (
	StatusStarting   = string(replicate.Starting)
	StatusProcessing = string(replicate.Processing)
	StatusSucceeded  = string(replicate.Succeeded)
	StatusFailed     = string(replicate.Failed)
	StatusCanceled   = string(replicate.Canceled)
)

// JobError describes a prediction that did not succeed.
type JobError struct {
	PredictionID string
	Status       string
	Message      string
	Err          error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("prediction %s %s: %s", e.PredictionID, e.Status, e.Message)
	}
	return fmt.Sprintf("prediction %s %s", e.PredictionID, e.Status)
}

// Unwrap returns the underlying error.
func (e *JobError) Unwrap() error {
	return e.Err
}

// ReplicateClient creates predictions through the Replicate SDK and polls
// them to completion under an attempt ceiling.
type ReplicateClient struct {
	api          *replicate.Client
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
	maxAttempts  int
}

// ReplicateOption configures a ReplicateClient.
type ReplicateOption func(*ReplicateClient)

// WithBaseURL points the client at a different API base.
func WithBaseURL(url string) ReplicateOption {
	return func(c *ReplicateClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient replaces the HTTP client used for API calls and downloads.
func WithHTTPClient(hc *http.Client) ReplicateOption {
	return func(c *ReplicateClient) {
		c.httpClient = hc
	}
}

// WithPolling sets the poll interval and attempt ceiling. Zero values keep
// the defaults.
func WithPolling(interval time.Duration, maxAttempts int) ReplicateOption {
	return func(c *ReplicateClient) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
	}
}

// NewReplicateClient creates a client for token.
func NewReplicateClient(token string, opts ...ReplicateOption) (*ReplicateClient, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: REPLICATE_API_TOKEN not set", ErrMissingCredentials)
	}

	c := &ReplicateClient{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}

	clientOpts := []replicate.ClientOption{
		replicate.WithToken(token),
		replicate.WithHTTPClient(c.httpClient),
	}
	if c.baseURL != "" {
		clientOpts = append(clientOpts, replicate.WithBaseURL(c.baseURL))
	}
	api, err := replicate.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create replicate client: %w", err)
	}
	c.api = api
	return c, nil
}

// Create starts a prediction. A model given as "owner/name" without a
// version hash uses the model's latest deployment.
func (c *ReplicateClient) Create(ctx context.Context, model string, input any) (*replicate.Prediction, error) {
	in, err := predictionInput(input)
	if err != nil {
		return nil, err
	}

	var p *replicate.Prediction
	if owner, name, ok := strings.Cut(model, "/"); ok && !strings.Contains(model, ":") {
		p, err = c.api.CreatePredictionWithModel(ctx, owner, name, in, nil, false)
	} else {
		if i := strings.LastIndexByte(model, ':'); i >= 0 {
			model = model[i+1:]
		}
		p, err = c.api.CreatePrediction(ctx, model, in, nil, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}
	return p, nil
}

// predictionInput converts a tagged struct into the SDK's input map.
func predictionInput(v any) (replicate.PredictionInput, error) {
	if v == nil {
		return replicate.PredictionInput{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction input: %w", err)
	}
	in := replicate.PredictionInput{}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("prediction input must be an object: %w", err)
	}
	return in, nil
}

func terminal(status replicate.Status) bool {
	switch status {
	case replicate.Succeeded, replicate.Failed, replicate.Canceled:
		return true
	}
	return false
}

// Wait polls p until it reaches a terminal status or the attempt ceiling
// is hit. Failed and canceled jobs are returned as *JobError.
func (c *ReplicateClient) Wait(ctx context.Context, p *replicate.Prediction) (*replicate.Prediction, error) {
	for attempt := 0; !terminal(p.Status); attempt++ {
		if attempt >= c.maxAttempts {
			return nil, &JobError{PredictionID: p.ID, Status: string(p.Status), Message: "still running after polling limit", Err: ErrTimeout}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		next, err := c.api.GetPrediction(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get prediction: %w", err)
		}
		p = next
	}

	if p.Status != replicate.Succeeded {
		msg := fmt.Sprint(p.Error)
		if msg == "<nil>" {
			msg = ""
		}
		return nil, &JobError{PredictionID: p.ID, Status: string(p.Status), Message: msg}
	}
	return p, nil
}

// Run creates a prediction and waits for its output, returned as JSON.
func (c *ReplicateClient) Run(ctx context.Context, model string, input any) (json.RawMessage, error) {
	start := time.Now()
	p, err := c.Create(ctx, model, input)
	if err != nil {
		return nil, err
	}
	p, err = c.Wait(ctx, p)
	if err != nil {
		return nil, err
	}
	slog.Debug("Prediction finished", "prediction_id", p.ID, "duration", time.Since(start))

	out, err := json.Marshal(p.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction output: %w", err)
	}
	return out, nil
}

// Download fetches a file produced by a prediction.
func (c *ReplicateClient) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download output: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download output: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
