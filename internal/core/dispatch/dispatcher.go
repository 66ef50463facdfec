// Package dispatch forwards accepted submissions to a downstream collaborator:
// an SMTP relay or a search index.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/contactd/contactd/internal/config"
	"github.com/contactd/contactd/internal/core"
)

// Dispatcher delivers a submission. Implementations never panic on
// collaborator failure; they report it through core.Failed.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, sub core.Submission) core.DispatchResult
}

// Searcher is implemented by dispatchers backed by a queryable store.
type Searcher interface {
	Search(ctx context.Context, query string) (json.RawMessage, error)
	Health(ctx context.Context) (json.RawMessage, error)
}

// New builds the dispatcher selected by cfg.Dispatch.Mode, wrapped in the
// configured throttle.
func New(cfg *config.Config) (Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var base Dispatcher
	switch cfg.Dispatch.Mode {
	case config.DispatchMail:
		base = NewMailDispatcher(cfg.Mail)
	case config.DispatchIndex:
		base = NewIndexDispatcher(cfg.Index, &http.Client{Timeout: indexClientTimeout(cfg.Dispatch.Timeout)})
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", cfg.Dispatch.Mode)
	}

	return NewThrottled(base, cfg.Dispatch.MaxPerSecond, cfg.Dispatch.Burst), nil
}

// SearcherOf returns the Searcher behind d, looking through wrappers.
func SearcherOf(d Dispatcher) (Searcher, bool) {
	for d != nil {
		if s, ok := d.(Searcher); ok {
			return s, true
		}
		u, ok := d.(interface{ Unwrap() Dispatcher })
		if !ok {
			return nil, false
		}
		d = u.Unwrap()
	}
	return nil, false
}

func indexClientTimeout(dispatchTimeout time.Duration) time.Duration {
	if dispatchTimeout <= 0 {
		return 15 * time.Second
	}
	return dispatchTimeout
}
