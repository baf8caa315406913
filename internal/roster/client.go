package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"licensescan/internal"
	"licensescan/internal/config"
	"licensescan/internal/storage"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("dashboard api unavailable")

const maxAttempts = 5

type apiError struct {
	Status int
	Detail string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("dashboard api error: status=%d detail=%s", e.Status, e.Detail)
}

type errorPayload struct {
	Detail any `json:"detail"`
}

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	breaker    *gobreaker.CircuitBreaker
	backoff    func(attempt int) time.Duration
}

func NewClient(cfg config.Config) *Client {
	failures := cfg.DashboardBreakerFailures
	if failures <= 0 {
		failures = 3
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.DashboardTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.DashboardRateLimitRPS),
		breaker:    newBreaker("dashboard-api", uint32(failures)),
		backoff: func(attempt int) time.Duration {
			return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
		},
	}
}

func newBreaker(name string, failures uint32) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 4xx answers mean the API is up; only transport errors and 5xx count.
		IsSuccessful: func(err error) bool {
			var apiErr *apiError
			if errors.As(err, &apiErr) {
				return apiErr.Status < 500
			}
			return err == nil || errors.Is(err, storage.ErrDuplicateLicense) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

func (c *Client) ListStudents(ctx context.Context) ([]internal.StudentRecord, error) {
	body, err := c.call(ctx, http.MethodGet, "students", nil)
	if err != nil {
		return nil, err
	}
	var out []internal.StudentRecord
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode students: %w", err)
	}
	return out, nil
}

func (c *Client) CreateStudent(ctx context.Context, student internal.StudentRecord) (internal.StudentRecord, error) {
	student.ID = nil
	payload, err := json.Marshal(student)
	if err != nil {
		return internal.StudentRecord{}, err
	}
	body, err := c.call(ctx, http.MethodPost, "students", payload)
	if err != nil {
		return internal.StudentRecord{}, err
	}
	var saved internal.StudentRecord
	if err := json.Unmarshal(body, &saved); err != nil {
		return internal.StudentRecord{}, fmt.Errorf("decode saved student: %w", err)
	}
	return saved, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(ctx, method, endpoint, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (c *Client) doWithRetry(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	baseURL := strings.TrimRight(c.cfg.DashboardAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := strings.TrimSpace(c.cfg.DashboardAPIToken); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		apiErr := &apiError{Status: resp.StatusCode, Detail: errorDetail(body)}
		if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
			lastErr = apiErr
			if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		if isDuplicateLicense(apiErr) {
			return nil, fmt.Errorf("%w: %s", storage.ErrDuplicateLicense, apiErr.Detail)
		}
		return nil, apiErr
	}

	if lastErr == nil {
		lastErr = errors.New("dashboard request failed")
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func errorDetail(body []byte) string {
	var p errorPayload
	if err := json.Unmarshal(body, &p); err == nil && p.Detail != nil {
		if s, ok := p.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(p.Detail)
		return string(b)
	}
	return strings.TrimSpace(string(body))
}

func isDuplicateLicense(err *apiError) bool {
	if err.Status != http.StatusBadRequest && err.Status != http.StatusConflict {
		return false
	}
	return strings.Contains(strings.ToLower(err.Detail), "already exists")
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
