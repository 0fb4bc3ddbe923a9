package analytics

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eternisai/maintenance-tracker/internal/logger"
	"github.com/eternisai/maintenance-tracker/internal/metrics"
)

const (
	storeName = "analytics"

	// FetchFailedMessage is shown when a failed fetch carries no message of its own.
	FetchFailedMessage = "Failed to fetch analytics"
)

// ErrStoreClosed is returned by operations on a store after Close.
var ErrStoreClosed = errors.New("analytics store closed")

// Transport fetches the aggregate statistics.
type Transport interface {
	GetStats(ctx context.Context) (*Stats, error)
}

// State is a point-in-time copy of what the store holds.
type State struct {
	// Stats is nil until the first successful fetch.
	Stats     *Stats
	IsLoading bool
	Err       string
}

// Store holds a read-only snapshot of the dashboard statistics. It follows
// the same ordering rules as the request store: only the most recently
// issued fetch may update state, and nothing is applied after Close.
type Store struct {
	transport Transport
	logger    *logger.Logger
	recorder  metrics.Recorder

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          State
	seq            uint64
	cancelInFlight context.CancelFunc
	started        bool
	closed         bool
	subscribers    map[int]chan State
	nextSubID      int
}

// Option configures a Store.
type Option func(*Store)

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(s *Store) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// NewStore creates a store in its initial loading state.
func NewStore(transport Transport, log *logger.Logger, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		transport:   transport,
		logger:      log.WithComponent("analytics_store"),
		recorder:    metrics.NoopRecorder{},
		ctx:         ctx,
		cancel:      cancel,
		state:       State{IsLoading: true},
		subscribers: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start performs the initial fetch. Later calls are no-ops.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	return s.FetchStats(ctx)
}

// FetchStats replaces the held stats wholesale. A failure keeps the previous
// stats and records the message in State.Err.
func (s *Store) FetchStats(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}

	s.seq++
	seq := s.seq
	if s.cancelInFlight != nil {
		s.cancelInFlight()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	s.cancelInFlight = cancel

	s.state.IsLoading = true
	s.state.Err = ""
	s.publishLocked()
	s.mu.Unlock()

	defer cancel()
	defer stop()

	fetchCtx = logger.WithStore(logger.WithOperation(fetchCtx, "fetch_stats"), storeName)
	log := s.logger.WithContext(fetchCtx).With(slog.Uint64("seq", seq))

	start := time.Now()
	stats, err := s.transport.GetStats(fetchCtx)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || seq != s.seq {
		s.recorder.ObserveFetch(storeName, metrics.OutcomeStale, elapsed)
		log.Debug("discarding stale stats response", slog.Uint64("latest_seq", s.seq))
		return nil
	}

	s.cancelInFlight = nil
	s.state.IsLoading = false

	if err == nil && stats == nil {
		err = errors.New("empty response from backend")
	}
	if err != nil {
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			msg = FetchFailedMessage
		}
		s.state.Err = msg
		s.recorder.ObserveFetch(storeName, metrics.OutcomeFailure, elapsed)
		log.Warn("failed to fetch analytics", slog.String("error", err.Error()))
		s.publishLocked()
		return err
	}

	snapshot := *stats
	s.state.Stats = &snapshot
	s.recorder.ObserveFetch(storeName, metrics.OutcomeSuccess, elapsed)
	log.Debug("analytics loaded",
		slog.Int("total_requests", stats.TotalRequests),
		slog.Int("high_priority_count", stats.HighPriorityCount))
	s.publishLocked()

	return nil
}

// Refresh re-fetches the statistics.
func (s *Store) Refresh(ctx context.Context) error {
	return s.FetchStats(ctx)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving the latest snapshot after every
// change, and a func that unsubscribes.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
}

// Close cancels in-flight fetches and stops all state updates.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	s.mu.Unlock()

	s.cancel()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	if s.state.Stats != nil {
		stats := *s.state.Stats
		st.Stats = &stats
	}
	return st
}

// publishLocked must be called with s.mu held.
func (s *Store) publishLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	st := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}
