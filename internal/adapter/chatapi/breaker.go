package chatapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"vocabchat/internal/domain"
	"vocabchat/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerClient wraps a domain.ChatTransport with circuit breaker
// protection. When the backend fails repeatedly, the circuit opens and
// subsequent submits fail fast without reaching the network. Streaming
// errors after connection establishment do not trip the breaker; they
// arrive through the frame channel.
type BreakerClient struct {
	inner   domain.ChatTransport
	breaker *gobreaker.CircuitBreaker[string]
	logger  *slog.Logger
}

// NewBreakerClient wraps inner with a circuit breaker. Zero-valued
// settings fall back to defaults.
func NewBreakerClient(inner domain.ChatTransport, cfg config.BreakerConfig, logger *slog.Logger) *BreakerClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "chatapi",
		MaxRequests: 1, // one probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BreakerClient{
		inner:   inner,
		breaker: cb,
		logger:  logger,
	}
}

// Chat implements domain.ChatTransport through the breaker.
func (b *BreakerClient) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	msg, err := b.breaker.Execute(func() (string, error) {
		return b.inner.Chat(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", fmt.Errorf("chat backend circuit open: %w", err)
		}
		return "", err
	}
	return msg, nil
}

// ChatStream implements domain.ChatTransport. The breaker guards the
// connection establishment only.
func (b *BreakerClient) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamFrame, error) {
	var ch <-chan domain.StreamFrame
	_, err := b.breaker.Execute(func() (string, error) {
		var streamErr error
		ch, streamErr = b.inner.ChatStream(ctx, req)
		return "", streamErr
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("chat backend circuit open: %w", err)
		}
		return nil, err
	}
	return ch, nil
}

// State returns the current breaker state for monitoring.
func (b *BreakerClient) State() gobreaker.State {
	return b.breaker.State()
}

// Compile-time interface check.
var _ domain.ChatTransport = (*BreakerClient)(nil)
