package dashboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eternisai/maintenance-tracker/internal/analytics"
	"github.com/eternisai/maintenance-tracker/internal/events"
	"github.com/eternisai/maintenance-tracker/internal/logger"
	"github.com/eternisai/maintenance-tracker/internal/requests"
)

const (
	title       = "Maintenance Request Tracker"
	clearScreen = "\033[H\033[2J"
)

// Dashboard composes the two stores and renders them as text. The stores
// stay independent; the dashboard only reads their snapshots.
type Dashboard struct {
	Requests  *requests.Store
	Analytics *analytics.Store
	Form      *Form

	logger *logger.Logger

	// renderMu keeps frames from interleaving.
	renderMu sync.Mutex
}

// New creates a dashboard over the two stores.
func New(reqs *requests.Store, stats *analytics.Store, log *logger.Logger) *Dashboard {
	return &Dashboard{
		Requests:  reqs,
		Analytics: stats,
		Form:      NewForm(reqs),
		logger:    log.WithComponent("dashboard"),
	}
}

// Load performs the initial fetch of both stores concurrently. Each store
// records its own failure; the first error is returned.
func (d *Dashboard) Load(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return d.Requests.Start(ctx) })
	g.Go(func() error { return d.Analytics.Start(ctx) })
	return g.Wait()
}

// RefreshAll re-fetches both stores concurrently.
func (d *Dashboard) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return d.Requests.Refresh(ctx) })
	g.Go(func() error { return d.Analytics.Refresh(ctx) })
	return g.Wait()
}

// HandleEvent reacts to a backend change notification.
func (d *Dashboard) HandleEvent(ctx context.Context, event events.Event) {
	if event.Type != events.TypeRequestsChanged {
		return
	}
	d.logger.Debug("backend reported a change, refreshing", slog.Int64("id", event.ID))
	if err := d.RefreshAll(ctx); err != nil {
		d.logger.Warn("refresh after change event failed", slog.String("error", err.Error()))
	}
}

// Render writes a full frame: title, stats cards and the request table.
func (d *Dashboard) Render(w io.Writer) error {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	if _, err := fmt.Fprintf(w, "%s\n\n", title); err != nil {
		return err
	}
	if err := RenderStats(w, d.Analytics.Snapshot()); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return RenderRequests(w, d.Requests.Snapshot())
}

// Watch re-renders to w on every store change until ctx ends. When watcher
// is non-nil, backend change events trigger a refresh of both stores.
func (d *Dashboard) Watch(ctx context.Context, w io.Writer, watcher *events.Watcher) error {
	reqUpdates, unsubReqs := d.Requests.Subscribe()
	defer unsubReqs()
	statsUpdates, unsubStats := d.Analytics.Subscribe()
	defer unsubStats()

	g, ctx := errgroup.WithContext(ctx)

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx, func(e events.Event) { d.HandleEvent(ctx, e) })
		})
	}

	g.Go(func() error {
		frame := func() error {
			if _, err := io.WriteString(w, clearScreen); err != nil {
				return err
			}
			return d.Render(w)
		}
		if err := frame(); err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case _, ok := <-reqUpdates:
				if !ok {
					return nil
				}
			case _, ok := <-statsUpdates:
				if !ok {
					return nil
				}
			}
			if err := frame(); err != nil {
				return err
			}
		}
	})

	return g.Wait()
}
