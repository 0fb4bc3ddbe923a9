package requests

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
	storeName = "requests"

	// FetchFailedMessage is shown when a failed fetch carries no message of its own.
	FetchFailedMessage = "Failed to fetch requests"
)

// ErrStoreClosed is returned by operations on a store after Close.
var ErrStoreClosed = errors.New("request store closed")

// Transport is the part of the backend contract the store depends on.
type Transport interface {
	ListRequests(ctx context.Context, skip, limit int) (*Page, error)
	CreateRequest(ctx context.Context, payload CreateRequest) (*MaintenanceRequest, error)
}

// State is a point-in-time copy of what the store holds.
type State struct {
	Items     []MaintenanceRequest
	IsLoading bool
	// Err is the message of the last failed list fetch, empty otherwise.
	Err   string
	Page  int
	Pages int
	Total int
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(s *Store) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// Store owns the cached, paginated collection of maintenance requests.
//
// Every list fetch takes a sequence number when it is issued. A response is
// applied only if no newer fetch was issued in the meantime and the store is
// still open; anything else is dropped. Created records become visible by
// navigating to page 1 and re-fetching it.
type Store struct {
	transport Transport
	logger    *logger.Logger
	recorder  metrics.Recorder
	pageSize  int

	// ctx is cancelled by Close and bounds every in-flight fetch.
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

// NewStore creates a store in its initial loading state. Call Start to issue
// the first fetch.
func NewStore(transport Transport, log *logger.Logger, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		transport: transport,
		logger:    log.WithComponent("request_store"),
		recorder:  metrics.NoopRecorder{},
		pageSize:  DefaultPageSize,
		ctx:       ctx,
		cancel:    cancel,
		state: State{
			IsLoading: true,
			Page:      1,
			Pages:     1,
		},
		subscribers: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageSize returns the fixed number of items requested per page.
func (s *Store) PageSize() int {
	return s.pageSize
}

// Start performs the initial fetch of page 1. Later calls are no-ops.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	return s.FetchPage(ctx, 1)
}

// FetchPage loads page and replaces the cached items with the result. Pages
// below 1 are treated as page 1.
//
// On failure the previous items stay in place and State.Err carries the
// message; the error is also returned. A response that was superseded by a
// newer fetch, or that arrives after Close, is discarded and FetchPage
// returns nil.
func (s *Store) FetchPage(ctx context.Context, page int) error {
	return s.fetch(ctx, func(int) int { return page })
}

// SetPage navigates to page. Setting the page the store is already on does
// nothing; use Refresh to reload it.
func (s *Store) SetPage(ctx context.Context, page int) error {
	page = max(page, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	current := s.state.Page
	s.mu.Unlock()

	if page == current {
		return nil
	}
	return s.FetchPage(ctx, page)
}

// Refresh re-fetches the current page, resolved when the fetch is issued.
func (s *Store) Refresh(ctx context.Context) error {
	return s.fetch(ctx, func(current int) int { return current })
}

// fetch issues a list fetch for the page pick returns. pick runs under s.mu
// in the same critical section that assigns the sequence number.
func (s *Store) fetch(ctx context.Context, pick func(current int) int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}

	page := max(pick(s.state.Page), 1)
	s.seq++
	seq := s.seq
	if s.cancelInFlight != nil {
		s.cancelInFlight()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	s.cancelInFlight = cancel

	s.state.Page = page
	s.state.IsLoading = true
	s.state.Err = ""
	s.publishLocked()
	s.mu.Unlock()

	defer cancel()
	defer stop()

	fetchCtx = logger.WithStore(logger.WithOperation(fetchCtx, "fetch_page"), storeName)
	log := s.logger.WithContext(fetchCtx).With(slog.Int("page", page), slog.Uint64("seq", seq))

	start := time.Now()
	result, err := s.transport.ListRequests(fetchCtx, Skip(page, s.pageSize), s.pageSize)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || seq != s.seq {
		s.recorder.ObserveFetch(storeName, metrics.OutcomeStale, elapsed)
		log.Debug("discarding stale page response",
			slog.Uint64("latest_seq", s.seq),
			slog.Bool("closed", s.closed))
		return nil
	}

	s.cancelInFlight = nil
	s.state.IsLoading = false

	if err == nil && result == nil {
		err = errors.New("empty response from backend")
	}
	if err != nil {
		s.state.Err = errorMessage(err, FetchFailedMessage)
		s.recorder.ObserveFetch(storeName, metrics.OutcomeFailure, elapsed)
		log.Warn("failed to fetch requests page", slog.String("error", err.Error()))
		s.publishLocked()
		return err
	}

	pages := PageCount(result.Total, s.pageSize)
	if result.Pages != 0 && result.Pages != pages {
		log.Warn("backend page count disagrees with total",
			slog.Int("backend_pages", result.Pages),
			slog.Int("computed_pages", pages),
			slog.Int("total", result.Total))
	}
	if len(result.Items) > s.pageSize {
		log.Warn("backend returned more items than requested",
			slog.Int("items", len(result.Items)),
			slog.Int("limit", s.pageSize))
	}

	s.state.Items = append([]MaintenanceRequest(nil), result.Items...)
	s.state.Total = result.Total
	s.state.Pages = pages
	s.recorder.ObserveFetch(storeName, metrics.OutcomeSuccess, elapsed)
	log.Debug("requests page loaded",
		slog.Int("items", len(result.Items)),
		slog.Int("total", result.Total),
		slog.Duration("duration", elapsed))
	s.publishLocked()

	return nil
}

// Create submits payload and, once the backend accepts it, moves to page 1
// and re-fetches so the new record shows with authoritative counts.
//
// Create errors are returned to the caller and never recorded in State.Err.
// A failure of the follow-up fetch is recorded in State.Err but does not
// fail the create: the record exists on the backend and is returned.
func (s *Store) Create(ctx context.Context, payload CreateRequest) (*MaintenanceRequest, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	known := make(map[int64]struct{}, len(s.state.Items))
	for _, item := range s.state.Items {
		known[item.ID] = struct{}{}
	}
	s.mu.Unlock()

	ctx = logger.WithStore(logger.WithOperation(ctx, "create_request"), storeName)
	log := s.logger.WithContext(ctx)

	created, err := s.transport.CreateRequest(ctx, payload)
	if err == nil && created == nil {
		err = errors.New("empty response from backend")
	}
	if err != nil {
		s.recorder.IncCreate(false)
		log.Warn("failed to create request", slog.String("error", err.Error()))
		return nil, err
	}
	s.recorder.IncCreate(true)

	if _, dup := known[created.ID]; dup {
		log.Warn("backend returned an id already present in the cached page",
			slog.Int64("id", created.ID))
	}

	log.Info("request created",
		slog.Int64("id", created.ID),
		slog.String("priority", string(created.Priority)))

	if err := s.FetchPage(ctx, 1); err != nil && !errors.Is(err, ErrStoreClosed) {
		log.Warn("refetch after create failed", slog.String("error", err.Error()))
	}

	return created, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot after every state
// change. Only the latest undelivered snapshot is kept, so a slow reader
// skips intermediate states. The returned func unsubscribes; Close closes
// every subscriber channel.
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

// Close tears the store down: in-flight fetches are cancelled, their
// responses are never applied, and subscriber channels are closed.
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
	st.Items = append([]MaintenanceRequest(nil), s.state.Items...)
	return st
}

// publishLocked hands the current snapshot to every subscriber without
// blocking. Must be called with s.mu held, which keeps deliveries ordered.
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

func errorMessage(err error, fallback string) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}
