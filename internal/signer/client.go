// Package signer talks to the upstream signing services. Both the domestic
// and European clients share one JSON-over-HTTP core with bounded retries.
package signer

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "certo/pkg/domain-errors"
)

// retryableStatus is the status set worth another attempt. 4xx other than 429
// will not improve on retry.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client is the shared outbound HTTP core. It posts JSON, retries transient
// failures with exponential backoff, and traces every attempt.
type Client struct {
	http        *http.Client
	logger      *slog.Logger
	tracer      trace.Tracer
	maxAttempts int
	baseDelay   time.Duration
}

// Options configures the shared client.
type Options struct {
	Timeout      time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
	CABundlePath string
}

// NewClient builds the shared client. When CABundlePath is set the PEM bundle
// replaces the system trust store for signer connections.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 200 * time.Millisecond
	}

	transport := http.DefaultTransport
	if opts.CABundlePath != "" {
		pem, err := os.ReadFile(opts.CABundlePath)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %s contains no certificates", opts.CABundlePath)
		}
		transport = &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}}
	}

	return &Client{
		http:        &http.Client{Timeout: opts.Timeout, Transport: transport},
		logger:      logger,
		tracer:      otel.Tracer("certo/signer"),
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
	}, nil
}

// PostJSON posts the body to url and returns the raw response bytes. Transient
// upstream statuses are retried with exponential backoff up to the attempt
// budget; anything else fails immediately.
func (c *Client) PostJSON(ctx context.Context, name, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", name, err)
	}

	ctx, span := c.tracer.Start(ctx, "signer."+name,
		trace.WithAttributes(attribute.String("signer.url", url)))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.baseDelay << (attempt - 2)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, retryable, err := c.post(ctx, url, payload)
		if err == nil {
			span.SetAttributes(attribute.Int("signer.attempts", attempt))
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.WarnContext(ctx, "signer call failed, retrying",
			"call", name, "attempt", attempt, "error", err)
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return nil, dErrors.Wrap(lastErr, dErrors.CodeUpstream, name+" signing failed")
}

func (c *Client) post(ctx context.Context, url string, payload []byte) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Network-level failures are worth another attempt.
		return nil, true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retryableStatus[resp.StatusCode],
			fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return raw, false, nil
}
