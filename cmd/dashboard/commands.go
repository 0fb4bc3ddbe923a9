package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eternisai/maintenance-tracker/internal/analytics"
	"github.com/eternisai/maintenance-tracker/internal/dashboard"
	"github.com/eternisai/maintenance-tracker/internal/events"
	"github.com/eternisai/maintenance-tracker/internal/metrics"
	"github.com/eternisai/maintenance-tracker/internal/refresh"
	"github.com/eternisai/maintenance-tracker/internal/requests"
)

func newRequestStore(g *Global) *requests.Store {
	return requests.NewStore(g.Client, g.Logger,
		requests.WithPageSize(g.Config.PageSize),
		requests.WithRecorder(g.Recorder))
}

func newAnalyticsStore(g *Global) *analytics.Store {
	return analytics.NewStore(g.Client, g.Logger, analytics.WithRecorder(g.Recorder))
}

// ListCmd implements the 'list' command.
type ListCmd struct {
	Page int `short:"p" help:"Page to show (1-indexed)" default:"1"`
}

func (l *ListCmd) Run(g *Global) error {
	if l.Page < 1 {
		return fmt.Errorf("page must be at least 1, got %d", l.Page)
	}

	ctx := context.Background()
	store := newRequestStore(g)
	defer store.Close()

	// The initial fetch is page 1; only fetch again when another page is asked for.
	if err := store.Start(ctx); err != nil {
		return err
	}
	if err := store.SetPage(ctx, l.Page); err != nil {
		return err
	}

	return dashboard.RenderRequests(os.Stdout, store.Snapshot())
}

// CreateCmd implements the 'create' command.
type CreateCmd struct {
	Title       string `arg:"" help:"Short summary of the problem"`
	Description string `arg:"" help:"Details of the problem"`
	Priority    string `short:"p" help:"Priority" enum:"Low,Medium,High" default:"Low"`
}

func (c *CreateCmd) Run(g *Global) error {
	ctx := context.Background()
	store := newRequestStore(g)
	defer store.Close()

	form := dashboard.NewForm(store)
	form.Set(c.Title, c.Description, requests.Priority(c.Priority))

	created, err := form.Submit(ctx)
	if err != nil {
		st := form.State()
		for field, msg := range st.FieldErrors {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
		}
		return err
	}

	fmt.Printf("Created request #%d (%s, %s)\n\n", created.ID, created.Priority, created.Status)
	return dashboard.RenderRequests(os.Stdout, store.Snapshot())
}

// StatsCmd implements the 'stats' command.
type StatsCmd struct{}

func (s *StatsCmd) Run(g *Global) error {
	store := newAnalyticsStore(g)
	defer store.Close()

	if err := store.Start(context.Background()); err != nil {
		return err
	}
	return dashboard.RenderStats(os.Stdout, store.Snapshot())
}

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	NoEvents    bool   `name:"no-events" help:"Do not subscribe to backend change events"`
	Schedule    string `help:"Cron spec for periodic refresh (overrides REFRESH_SCHEDULE)"`
	MetricsAddr string `name:"metrics-addr" help:"Serve client metrics on this address, e.g. :9100"`
}

func (w *WatchCmd) Run(g *Global) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d := dashboard.New(newRequestStore(g), newAnalyticsStore(g), g.Logger)
	defer d.Requests.Close()
	defer d.Analytics.Close()

	if w.MetricsAddr != "" {
		srv := &http.Server{Addr: w.MetricsAddr, Handler: metrics.HTTPHandler(g.Registry), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.Logger.Warn("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
		defer srv.Close()
	}

	schedule := g.Config.RefreshSchedule
	if w.Schedule != "" {
		schedule = w.Schedule
	}
	if schedule != "" {
		scheduler, err := refresh.New(schedule, g.Config.HTTPTimeout, g.Logger,
			refresh.Target{Name: "requests", Refresher: d.Requests},
			refresh.Target{Name: "analytics", Refresher: d.Analytics},
		)
		if err != nil {
			return err
		}
		scheduler.Start(ctx)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			_ = scheduler.Stop(stopCtx)
		}()
	}

	var watcher *events.Watcher
	if !w.NoEvents {
		watcher = events.NewWatcher(events.EventsURL(g.Config.APIBaseURL), g.Logger, g.Recorder)
	}

	// Load failures are shown in the frame; the watch keeps running so a
	// later refresh can recover.
	if err := d.Load(ctx); err != nil {
		g.Logger.Warn("initial load failed", slog.String("error", err.Error()))
	}

	if err := d.Watch(ctx, os.Stdout, watcher); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
