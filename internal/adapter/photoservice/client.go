// Package photoservice provides the resilient has-photo probe against the
// downstream photo service.
package photoservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/userprofile/internal/adapter/otel"
	"github.com/Strob0t/userprofile/internal/domain/photo"
	"github.com/Strob0t/userprofile/internal/resilience"
)

// BreakerName is the name of the breaker guarding the photo service.
const BreakerName = "photoService"

// maxDrain bounds how much of a photo body is read before the connection is
// closed. The probe only needs the status line.
const maxDrain = 64 << 10

var (
	// ErrTimeout is returned when a probe exceeds the configured time limit.
	ErrTimeout = errors.New("photo probe timed out")
	// ErrUnexpectedStatus is wrapped by StatusError.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrCanceled marks a probe abandoned by its caller. It is not held
	// against the photo service.
	ErrCanceled = errors.New("photo probe canceled by caller")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("photo service returned %d", e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// IsBreakerFailure is the breaker's failure predicate: every probe error
// counts except the caller's own cancellation.
func IsBreakerFailure(err error) bool {
	return !errors.Is(err, ErrCanceled)
}

// Probe outcomes used in logs and metrics.
const (
	OutcomePresent          = "present"
	OutcomeAbsent           = "absent"
	OutcomeNotPermitted     = "not_permitted"
	OutcomeTimeout          = "timeout"
	OutcomeUnexpectedStatus = "unexpected_status"
	OutcomeTransportError   = "transport_error"
	OutcomeCanceled         = "canceled"
)

// probeResult is the single internal result of one probe, before it is
// collapsed to a photo.Status.
type probeResult struct {
	err error
}

func (r probeResult) outcome() string {
	var se *StatusError
	switch {
	case r.err == nil:
		return OutcomePresent
	case errors.Is(r.err, resilience.ErrCircuitOpen):
		return OutcomeNotPermitted
	case errors.Is(r.err, ErrCanceled):
		return OutcomeCanceled
	case errors.Is(r.err, ErrTimeout):
		return OutcomeTimeout
	case errors.As(r.err, &se) && se.Code == http.StatusNotFound:
		return OutcomeAbsent
	case errors.As(r.err, &se):
		return OutcomeUnexpectedStatus
	default:
		return OutcomeTransportError
	}
}

// status collapses every failure to Absent.
func (r probeResult) status() photo.Status {
	if r.err == nil {
		return photo.Present
	}
	return photo.Absent
}

// Client checks whether a user has a profile photo.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *resilience.Breaker
	metrics    *cfotel.Metrics
}

// NewClient creates a probe client. The breaker is shared by every caller of
// the photo service and must be created once per process; nil disables it.
func NewClient(baseURL string, timeout time.Duration, breaker *resilience.Breaker) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Transport: cfotel.Transport(nil),
		},
		breaker: breaker,
	}
}

// SetMetrics attaches probe metrics.
func (c *Client) SetMetrics(m *cfotel.Metrics) {
	c.metrics = m
}

// BreakerState reports the breaker state for health output.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// HasPhoto reports whether the photo service holds a photo for the user.
// It never fails: any error, timeout or open circuit yields photo.Absent.
func (c *Client) HasPhoto(ctx context.Context, bankID, userID int64) photo.Status {
	ctx, span := cfotel.StartProbeSpan(ctx, bankID, userID)
	defer span.End()

	start := time.Now()
	res := c.probe(ctx, bankID, userID)
	elapsed := time.Since(start)
	outcome := res.outcome()

	span.SetAttributes(attribute.String("probe.outcome", outcome))
	if c.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		c.metrics.ProbeCalls.Add(ctx, 1, attrs)
		c.metrics.ProbeDuration.Record(ctx, elapsed.Seconds(), attrs)
	}

	switch outcome {
	case OutcomePresent, OutcomeAbsent, OutcomeCanceled, OutcomeNotPermitted:
		slog.DebugContext(ctx, "photo probe", "bank_id", bankID, "user_id", userID, "outcome", outcome, "duration", elapsed)
	default:
		slog.WarnContext(ctx, "photo probe failed", "bank_id", bankID, "user_id", userID, "outcome", outcome, "duration", elapsed, "error", res.err)
	}

	return res.status()
}

func (c *Client) probe(ctx context.Context, bankID, userID int64) probeResult {
	call := func() error { return c.do(ctx, bankID, userID) }
	if c.breaker == nil {
		return probeResult{err: call()}
	}
	return probeResult{err: c.breaker.Execute(call)}
}

func (c *Client) do(parent context.Context, bankID, userID int64) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	url := c.baseURL + "/v1/banks/" + strconv.FormatInt(bankID, 10) +
		"/users/" + strconv.FormatInt(userID, 10) + "/photo"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case parent.Err() != nil:
			return fmt.Errorf("%w: %w", ErrCanceled, parent.Err())
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
