// Package sessionguard keeps one logged-in session honest: it re-checks the
// account on demand and on a timer, and ends the session on the first
// failing check.
package sessionguard

import (
	"context"
	"sync"
	"time"
)

// CheckFunc performs one check. It is never called concurrently.
type CheckFunc func(ctx context.Context) Result

// Guard runs checks from a single goroutine, so two checks never overlap.
// Triggers that arrive while a check runs collapse into one follow-up check.
type Guard struct {
	check    CheckFunc
	interval time.Duration
	onLogout func(Result)

	trigger chan struct{}
	done    chan struct{}
	once    sync.Once
}

func New(check CheckFunc, interval time.Duration, onLogout func(Result)) *Guard {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Guard{
		check:    check,
		interval: interval,
		onLogout: onLogout,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Trigger requests a check, as a focus, visibility or online event would.
func (g *Guard) Trigger() {
	select {
	case g.trigger <- struct{}{}:
	default:
	}
}

// Done is closed once Run has returned.
func (g *Guard) Done() <-chan struct{} {
	return g.done
}

// Run checks once immediately, then on every trigger and tick. It returns
// the logout result, or ctx.Err() when cancelled first.
func (g *Guard) Run(ctx context.Context) (Result, error) {
	defer g.once.Do(func() { close(g.done) })

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		if res := g.check(ctx); !res.OK {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			if g.onLogout != nil {
				g.onLogout(res)
			}
			return res, nil
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-g.trigger:
		case <-ticker.C:
		}
	}
}
