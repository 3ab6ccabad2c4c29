package authlink

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// episodeKey is the only key used in the singleflight group: there is a
// single episode slot per coordinator.
const episodeKey = "refresh"

// Coordinator makes sure at most one refresh call is in flight at a time and
// that every caller waiting on it sees the same outcome.
type Coordinator struct {
	store     TokenStore
	validator *Validator
	gateway   RefreshGateway
	logger    *slog.Logger
	timeout   time.Duration

	group singleflight.Group

	episodes atomic.Int64
	waiting  atomic.Int64
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets the logger used for episode events.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRefreshTimeout bounds every episode. Zero means no bound beyond the
// gateway's own.
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// NewCoordinator creates a coordinator over store, validator and gateway.
func NewCoordinator(store TokenStore, validator *Validator, gateway RefreshGateway, opts ...CoordinatorOption) *Coordinator {
	if validator == nil {
		validator = NewValidator(nil)
	}
	c := &Coordinator{
		store:     store,
		validator: validator,
		gateway:   gateway,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureValidToken returns a usable access token. A valid stored token is
// returned as is; otherwise the caller joins the current refresh episode,
// starting one if none is active.
func (c *Coordinator) EnsureValidToken(ctx context.Context) (string, error) {
	token := c.store.Get()
	if c.validator.Classify(token) == TokenValid {
		return token, nil
	}
	return c.join(ctx, false)
}

// Refresh joins the current episode or starts one, whatever the state of the
// stored token.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	return c.join(ctx, true)
}

// Episodes returns how many refresh episodes have called the gateway.
func (c *Coordinator) Episodes() int64 {
	return c.episodes.Load()
}

// Waiting returns how many callers have joined the current episode and are
// waiting for its outcome.
func (c *Coordinator) Waiting() int {
	return int(c.waiting.Load())
}

func (c *Coordinator) join(ctx context.Context, force bool) (string, error) {
	ch := c.group.DoChan(episodeKey, func() (any, error) {
		return c.runEpisode(context.WithoutCancel(ctx), force)
	})
	// counted only once joined, so Waiting never includes a caller that
	// could still start an episode of its own
	c.waiting.Add(1)
	defer c.waiting.Add(-1)

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		// the episode keeps running; its outcome is dropped for this caller
		return "", ctx.Err()
	}
}

// runEpisode is the body of a refresh episode. singleflight clears the slot
// only after it returns, so the store update below happens before any waiter
// is released.
func (c *Coordinator) runEpisode(ctx context.Context, force bool) (string, error) {
	if !force {
		// an episode that finished between the caller's check and this one
		// may already have stored a fresh token
		if token := c.store.Get(); c.validator.Classify(token) == TokenValid {
			return token, nil
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	n := c.episodes.Add(1)
	c.logger.Debug("refresh episode started", "episode", n)
	start := time.Now()

	token, err := c.gateway.Refresh(ctx)
	if err != nil {
		err = asRefreshError(err)
		c.logFailure(n, err)
		return "", err
	}

	c.store.Set(token)
	c.logger.Debug("refresh episode finished", "episode", n, "duration", time.Since(start))
	return token, nil
}

func (c *Coordinator) logFailure(episode int64, err error) {
	if IsTerminal(err) {
		c.logger.Warn("refresh token is invalid, re-login required", "episode", episode, "error", err)
		return
	}
	c.logger.Warn("refresh episode failed", "episode", episode, "error", err)
}

// asRefreshError wraps errors from custom gateways so that every waiter sees
// a *RefreshError. A gateway that gives up on its context reports a network
// failure.
func asRefreshError(err error) error {
	var rerr *RefreshError
	if errors.As(err, &rerr) {
		return err
	}
	return &RefreshError{Kind: NetworkFailure, Err: err}
}
