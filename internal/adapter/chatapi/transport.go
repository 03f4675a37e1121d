package chatapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"vocabchat/internal/domain"
	"vocabchat/internal/infra/config"
)

// maxResponseBody is the maximum response body size we read from the
// chat backend for non-streaming calls.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// Default transport timeouts. The streaming exchange gets a longer
// budget: the body stays open for the whole reply.
const (
	defaultConnTimeout   = 10 * time.Second
	defaultRespTimeout   = 30 * time.Second
	defaultStreamTimeout = 90 * time.Second
)

// Default connection pool settings: one backend host, few concurrent
// requests, long-lived connections.
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 5
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 120 * time.Second
)

// newPooledTransport creates an http.Transport with connection pooling
// sized for a single chat backend host.
func newPooledTransport(connTimeout time.Duration, pool config.PoolConfig) *http.Transport {
	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxIdlePerHost := pool.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = defaultMaxIdleConnsPerHost
	}
	maxConnsPerHost := pool.MaxConnsPerHost
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}
	idleTimeout := pool.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleConnTimeout
	}

	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdlePerHost,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleTimeout,
		ForceAttemptHTTP2:   true,
	}
}

// doJSONRequest performs a JSON POST request and returns the response
// body. Non-200 responses map to an ErrServerStatus-wrapped error whose
// text carries "HTTP <code>".
func doJSONRequest(ctx context.Context, client *http.Client, url string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, statusError(httpResp.StatusCode, respBody)
	}

	return respBody, nil
}

// doStreamRequest performs a JSON POST request for a chunked streaming
// reply. It returns the open *http.Response; the caller must close Body.
func doStreamRequest(ctx context.Context, client *http.Client, url string, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, statusError(httpResp.StatusCode, respBody)
	}

	return httpResp, nil
}

// statusError builds the error for a non-success status. The "HTTP
// <code>" marker is part of the contract: it ends up in the terminal
// bubble text.
func statusError(statusCode int, body []byte) error {
	detail := fmt.Sprintf("HTTP %d", statusCode)
	if len(body) > 0 {
		detail = fmt.Sprintf("%s: %s", detail, bytes.TrimSpace(body))
	}
	return fmt.Errorf("%w: %s", domain.ErrServerStatus, detail)
}
