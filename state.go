package vaultline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vaultline/vaultline/credentials"
)

// EmbeddedState describes how far the runtime has progressed towards a
// usable wallet.
type EmbeddedState int

const (
	// StateNone means the runtime holds no credentials at all.
	StateNone EmbeddedState = iota

	// StateUnauthenticated means credentials exist but nobody is logged in.
	StateUnauthenticated

	// StateAuthenticated means a user is logged in but no wallet is
	// configured yet.
	StateAuthenticated

	// StateReady means the wallet is configured and signing operations can
	// proceed.
	StateReady
)

func (s EmbeddedState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	default:
		return "none"
	}
}

// statePollInterval is how often the watcher re-derives the state. State is
// derived from the credential store rather than pushed, so changes made by
// another process sharing the store are picked up too.
const statePollInterval = 300 * time.Millisecond

type stateWatcher struct {
	repo   *credentials.Repository
	logger *slog.Logger

	mu       sync.Mutex
	handlers []func(EmbeddedState)
	last     EmbeddedState
	cancel   context.CancelFunc
}

func newStateWatcher(repo *credentials.Repository, logger *slog.Logger) *stateWatcher {
	return &stateWatcher{repo: repo, logger: logger, last: -1}
}

// current derives the state from the credential store.
func (w *stateWatcher) current(ctx context.Context) EmbeddedState {
	auth, err := w.repo.Authentication(ctx)
	if err != nil {
		// Store unreachable; nothing can be said about the session.
		return StateNone
	}
	if auth == nil {
		return StateUnauthenticated
	}

	account, err := w.repo.Account(ctx)
	if err != nil || account == nil {
		return StateAuthenticated
	}

	return StateReady
}

// watch registers a handler and starts the polling loop on first use.
func (w *stateWatcher) watch(handler func(EmbeddedState)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers = append(w.handlers, handler)
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(ctx)
}

func (w *stateWatcher) run(ctx context.Context) {
	ticker := time.NewTicker(statePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := w.current(ctx)

			w.mu.Lock()
			changed := state != w.last
			w.last = state
			handlers := make([]func(EmbeddedState), len(w.handlers))
			copy(handlers, w.handlers)
			w.mu.Unlock()

			if !changed {
				continue
			}

			w.logger.Debug("wallet state changed", "state", state.String())
			for _, h := range handlers {
				h(state)
			}
		}
	}
}

func (w *stateWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.handlers = nil
}
