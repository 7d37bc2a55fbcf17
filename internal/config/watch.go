package config

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/cfgtree/internal/config/reconcile"
	"github.com/dshills/cfgtree/internal/config/watcher"
)

// ChangeHandler receives the result of every Reload triggered by Watch.
// It runs on the Watch goroutine and may call Manager methods such as
// Resolve and Commit.
type ChangeHandler func(obs reconcile.Observation, err error)

// Watch blocks until ctx is done, reloading whenever the watched file
// changes or the sync channel announces a change, and passing each
// observation to onChange. It returns ErrNothingToWatch if there is
// neither a watch path nor an announcing channel, and ErrClosed if the
// Manager is closed while watching.
func (m *Manager) Watch(ctx context.Context, onChange ChangeHandler) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.watching {
		m.mu.Unlock()
		return ErrWatching
	}
	path := m.watchPath
	_, announces := m.channel.(announcer)
	if path == "" && !announces {
		m.mu.Unlock()
		return ErrNothingToWatch
	}
	m.watching = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.watching = false
		m.mu.Unlock()
	}()

	g, ctx := errgroup.WithContext(ctx)

	if path != "" {
		w, err := watcher.New(watcher.WithDebounce(m.debounce), watcher.WithLogger(m.logger))
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Watch(path); err != nil {
			return err
		}
		w.OnChange(func(ev watcher.Event) {
			m.logger.Debug("file changed", "path", ev.Path, "op", ev.Op.String())
			m.poke()
		})
		g.Go(func() error { return w.Run(ctx) })
		m.logger.Info("watching", "path", path)
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-m.trigger:
				obs, err := m.Reload(ctx)
				if errors.Is(err, ErrClosed) {
					return err
				}
				if err != nil {
					m.logger.Warn("reload failed", "err", err)
				}
				if onChange != nil {
					onChange(obs, err)
				}
			}
		}
	})

	return g.Wait()
}

// poke schedules a reload. Pokes arriving before the reload starts are
// merged into one.
func (m *Manager) poke() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}
