package jellyfin

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/metrics"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

const breakerName = "jellyfin-api"

// BreakerClient wraps Client with a circuit breaker so a failing server is
// not hammered by syncs and exports.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
	log    zerolog.Logger
}

// NewBreakerClient wraps client. The circuit opens once at least 10 requests
// in a one-minute window have a failure rate of 60% or more, and tries again
// after timeout (two minutes when zero).
func NewBreakerClient(client *Client, timeout time.Duration) *BreakerClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	b := &BreakerClient{
		client: client,
		log:    client.log.With().Str("breaker", breakerName).Logger(),
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		// Not-found responses and cancelled calls do not count as failures.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return b
}

// State returns the current breaker state.
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

// Ping checks connectivity through the breaker.
func (b *BreakerClient) Ping(ctx context.Context) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.client.Ping(ctx)
	})
	return err
}

// SystemInfo fetches server name and version through the breaker.
func (b *BreakerClient) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetSystemInfo(ctx)
	})
	if err != nil {
		return nil, err
	}
	info, ok := result.(*SystemInfo)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for SystemInfo")
	}
	return info, nil
}

// GetItems fetches one page through the breaker.
func (b *BreakerClient) GetItems(ctx context.Context, q ItemQuery) (*ItemsPage, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetItems(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	page, ok := result.(*ItemsPage)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetItems")
	}
	return page, nil
}

// FetchAllItems fetches the whole library as a single breaker call.
func (b *BreakerClient) FetchAllItems(ctx context.Context) ([]ranking.Item, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.FetchAllItems(ctx)
	})
	if err != nil {
		return nil, err
	}
	items, ok := result.([]ranking.Item)
	if !ok && result != nil {
		return nil, errors.New("circuit breaker: unexpected result type for FetchAllItems")
	}
	return items, nil
}

// CreatePlaylist creates a playlist through the breaker.
func (b *BreakerClient) CreatePlaylist(ctx context.Context, name string, ids []string) (string, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.CreatePlaylist(ctx, name, ids)
	})
	if err != nil {
		return "", err
	}
	id, ok := result.(string)
	if !ok {
		return "", errors.New("circuit breaker: unexpected result type for CreatePlaylist")
	}
	return id, nil
}

func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
			b.log.Warn().Err(err).Msg("jellyfin request rejected by circuit breaker")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return result, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
