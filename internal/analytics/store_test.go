package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eternisai/maintenance-tracker/internal/logger"
)

type fakeStats struct {
	mu    sync.Mutex
	stats []*Stats
	err   error
	gate  chan struct{}
	calls int
	// called receives one value per GetStats call.
	called chan struct{}
}

func newFakeStats(stats ...*Stats) *fakeStats {
	return &fakeStats{stats: stats, called: make(chan struct{}, 16)}
}

func (f *fakeStats) GetStats(ctx context.Context) (*Stats, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	gate := f.gate
	f.gate = nil
	f.mu.Unlock()
	f.called <- struct{}{}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.stats) == 0 {
		return &Stats{}, nil
	}
	idx := call - 1
	if idx >= len(f.stats) {
		idx = len(f.stats) - 1
	}
	s := *f.stats[idx]
	return &s, nil
}

func strPtr(s string) *string { return &s }

func TestStoreInitialState(t *testing.T) {
	s := NewStore(newFakeStats(), logger.Discard())
	defer s.Close()

	if diff := cmp.Diff(State{IsLoading: true}, s.Snapshot()); diff != "" {
		t.Errorf("initial state mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreFetchStats(t *testing.T) {
	tests := []struct {
		name         string
		stats        *Stats
		wantCategory string
	}{
		{
			name:         "empty collection",
			stats:        &Stats{},
			wantCategory: "N/A",
		},
		{
			name: "categorized",
			stats: &Stats{
				TotalRequests:      7,
				MostCommonCategory: strPtr("Plumbing"),
				HighPriorityCount:  2,
			},
			wantCategory: "Plumbing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(newFakeStats(tt.stats), logger.Discard())
			defer s.Close()

			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			st := s.Snapshot()
			if st.IsLoading || st.Err != "" {
				t.Fatalf("IsLoading=%v Err=%q, want false and empty", st.IsLoading, st.Err)
			}
			if diff := cmp.Diff(tt.stats, st.Stats); diff != "" {
				t.Errorf("stats mismatch (-want +got):\n%s", diff)
			}
			if got := st.Stats.CategoryOr("N/A"); got != tt.wantCategory {
				t.Errorf("CategoryOr() = %q, want %q", got, tt.wantCategory)
			}
		})
	}
}

func TestStoreFailureKeepsPreviousStats(t *testing.T) {
	f := newFakeStats(&Stats{TotalRequests: 3})
	s := NewStore(f, logger.Discard())
	defer s.Close()
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.mu.Lock()
	f.err = errors.New("")
	f.mu.Unlock()

	if err := s.Refresh(ctx); err == nil {
		t.Fatal("Refresh() should return the fetch error")
	}

	st := s.Snapshot()
	if st.Err != FetchFailedMessage {
		t.Errorf("Err = %q, want %q", st.Err, FetchFailedMessage)
	}
	if st.Stats == nil || st.Stats.TotalRequests != 3 {
		t.Errorf("previous stats should survive a failed fetch, got %+v", st.Stats)
	}
}

func TestStoreStaleResponseDiscarded(t *testing.T) {
	f := newFakeStats(&Stats{TotalRequests: 1}, &Stats{TotalRequests: 2})
	f.gate = make(chan struct{})
	s := NewStore(f, logger.Discard())
	defer s.Close()
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- s.FetchStats(ctx) }()
	<-f.called

	if err := s.FetchStats(ctx); err != nil {
		t.Fatalf("FetchStats() error = %v", err)
	}
	if err := <-first; err != nil {
		t.Errorf("superseded fetch returned %v, want nil", err)
	}

	st := s.Snapshot()
	if st.Stats == nil || st.Stats.TotalRequests != 2 {
		t.Errorf("latest fetch should win, got %+v", st.Stats)
	}
}

func TestStoreCloseStopsUpdates(t *testing.T) {
	f := newFakeStats(&Stats{TotalRequests: 5})
	f.gate = make(chan struct{})
	s := NewStore(f, logger.Discard())

	updates, _ := s.Subscribe()
	done := make(chan error, 1)
	go func() { done <- s.FetchStats(context.Background()) }()
	<-f.called

	s.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("fetch after Close returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight fetch was not cancelled by Close")
	}

	if st := s.Snapshot(); st.Stats != nil {
		t.Errorf("stats applied after Close: %+v", st.Stats)
	}
	if err := s.FetchStats(context.Background()); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("FetchStats after Close = %v, want ErrStoreClosed", err)
	}

	// Drain: the channel must be closed.
	for range updates {
	}
}
