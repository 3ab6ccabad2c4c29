package authlink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// BootstrapState is the state of the startup refresh.
type BootstrapState int32

const (
	BootstrapLoading BootstrapState = iota
	BootstrapReady
)

func (s BootstrapState) String() string {
	if s == BootstrapReady {
		return "ready"
	}
	return "loading"
}

// Bootstrap runs the one silent refresh a client does at startup. It goes
// from Loading to Ready exactly once, whether or not the refresh succeeds; a
// failed refresh just leaves the session unauthenticated.
type Bootstrap struct {
	// OnStateChange, if set, is called once with BootstrapReady.
	// Set it before Run or Start.
	OnStateChange func(BootstrapState)

	provider TokenProvider
	logger   *slog.Logger

	state atomic.Int32
	once  sync.Once
	done  chan struct{}
	err   error
}

// NewBootstrap creates a bootstrap in the Loading state.
func NewBootstrap(provider TokenProvider, logger *slog.Logger) *Bootstrap {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrap{
		provider: provider,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// State returns the current state
func (b *Bootstrap) State() BootstrapState {
	return BootstrapState(b.state.Load())
}

// Done is closed once the bootstrap is Ready.
func (b *Bootstrap) Done() <-chan struct{} {
	return b.done
}

// Err returns the refresh error, if any, once Ready. It is informational only:
// the caller learns the session state from Session.IsAuthenticated.
func (b *Bootstrap) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Run performs the startup refresh. Only the first call does any work; later
// calls wait for it to finish.
func (b *Bootstrap) Run(ctx context.Context) error {
	b.once.Do(func() {
		_, err := b.provider.EnsureValidToken(ctx)
		b.err = err
		if err != nil {
			b.logger.Info("session bootstrap finished unauthenticated", "error", err)
		} else {
			b.logger.Info("session bootstrap finished")
		}
		b.state.Store(int32(BootstrapReady))
		close(b.done)
		if b.OnStateChange != nil {
			b.OnStateChange(BootstrapReady)
		}
	})
	<-b.done
	return b.err
}

// Start runs the bootstrap in the background.
func (b *Bootstrap) Start(ctx context.Context) {
	go b.Run(ctx)
}

// Wait blocks until the bootstrap is Ready or ctx ends.
func (b *Bootstrap) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
