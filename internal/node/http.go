package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/watcheth/stakewatch/internal/common"
	"github.com/watcheth/stakewatch/internal/logger"
	"github.com/watcheth/stakewatch/internal/stake"
	"github.com/watcheth/stakewatch/internal/version"
)

var (
	// ErrNoData is returned when a node answers without the requested payload.
	ErrNoData = errors.New("no data returned")
	// ErrInvalidData is returned when a payload cannot be decoded.
	ErrInvalidData = errors.New("invalid data")
)

const (
	healthPath  = "/health"
	maxRetries  = 2
	baseBackoff = 100 * time.Millisecond
)

// HTTPDialer opens sessions against the JSON stake query API of a node.
type HTTPDialer struct {
	httpClient *http.Client
}

func NewHTTPDialer(timeout time.Duration) *HTTPDialer {
	return &HTTPDialer{httpClient: common.NewHTTPClient(timeout)}
}

// Dial checks the node answers its health endpoint and returns a session bound to it.
func (d *HTTPDialer) Dial(ctx context.Context, uri string) (Session, error) {
	s := &httpSession{
		endpoint:   strings.TrimRight(uri, "/"),
		httpClient: d.httpClient,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+healthPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach node: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, healthPath)
	}
	return s, nil
}

type httpSession struct {
	endpoint   string
	httpClient *http.Client
}

func (s *httpSession) ValidatorStatus(ctx context.Context, id stake.IdentityKey) (*stake.Status, error) {
	var resp StatusResponse
	if err := s.get(ctx, ValidatorPath(id, "status"), &resp); err != nil {
		return nil, err
	}
	return resp.toStatus()
}

func (s *httpSession) ValidatorUptime(ctx context.Context, id stake.IdentityKey) (*stake.Uptime, error) {
	var resp UptimeResponse
	if err := s.get(ctx, ValidatorPath(id, "uptime"), &resp); err != nil {
		return nil, err
	}
	return resp.toUptime()
}

// ValidatorPath is the stake API path of a validator resource.
func ValidatorPath(id stake.IdentityKey, leaf string) string {
	return fmt.Sprintf("/stake/v1/validators/%s/%s", url.PathEscape(id.String()), leaf)
}

// get retries transport errors and 5xx responses with exponential backoff until
// the context expires. Client errors and undecodable bodies are not retried.
func (s *httpSession) get(ctx context.Context, path string, v any) error {
	target := s.endpoint + path
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("HTTP %d for %s", resp.StatusCode, path))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP %d for %s", resp.StatusCode, path)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = baseBackoff
	expBackoff.MaxElapsedTime = 0

	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(expBackoff, maxRetries), ctx),
		func(err error, delay time.Duration) {
			logger.Debug("Request to %s failed: %v, retrying in %s", target, err, delay)
		},
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", ErrInvalidData, err)
	}
	return nil
}
