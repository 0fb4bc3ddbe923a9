package devserver

import (
	"sort"
	"sync"
	"time"

	"github.com/eternisai/maintenance-tracker/internal/analytics"
	"github.com/eternisai/maintenance-tracker/internal/config"
	"github.com/eternisai/maintenance-tracker/internal/requests"
)

// createdAtLayout matches the naive ISO timestamps the production backend emits.
const createdAtLayout = "2006-01-02T15:04:05"

// Repository is the in-memory request collection served by the dev backend.
// Records are kept in insertion order; listing returns them newest first.
type Repository struct {
	mu     sync.RWMutex
	items  []requests.MaintenanceRequest
	nextID int64
	now    func() time.Time
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{nextID: 1, now: time.Now}
}

// Seed inserts seed records in order, so the last seed is listed first.
func (r *Repository) Seed(seeds []config.SeedRequest) {
	for _, seed := range seeds {
		r.insert(requests.MaintenanceRequest{
			Title:       seed.Title,
			Description: seed.Description,
			Category:    seed.Category,
			AISummary:   seed.AISummary,
			Priority:    requests.Priority(seed.Priority),
			Status:      requests.Status(seed.Status),
		})
	}
}

// Create stores a validated payload with its classification and returns the
// new record. The payload must already carry its defaults.
func (r *Repository) Create(payload requests.CreateRequest, class Classification) requests.MaintenanceRequest {
	return r.insert(requests.MaintenanceRequest{
		Title:       payload.Title,
		Description: payload.Description,
		Category:    optional(class.Category),
		AISummary:   optional(class.Summary),
		Priority:    payload.Priority,
		Status:      payload.Status,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *Repository) insert(rec requests.MaintenanceRequest) requests.MaintenanceRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.Priority == "" {
		rec.Priority = requests.PriorityLow
	}
	if rec.Status == "" {
		rec.Status = requests.StatusPending
	}
	rec.ID = r.nextID
	r.nextID++
	rec.CreatedAt = r.now().UTC().Format(createdAtLayout)

	r.items = append(r.items, rec)
	return rec
}

// List returns up to limit records starting at skip, newest first, and the
// size of the whole collection.
func (r *Repository) List(skip, limit int) ([]requests.MaintenanceRequest, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.items)
	out := make([]requests.MaintenanceRequest, 0, limit)
	for i := total - 1 - skip; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.items[i])
	}
	return out, total
}

// Stats aggregates over the whole collection. The most common category
// ignores uncategorized records; ties go to the alphabetically first name.
func (r *Repository) Stats() analytics.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := analytics.Stats{TotalRequests: len(r.items)}
	counts := make(map[string]int)
	for _, item := range r.items {
		if item.Priority == requests.PriorityHigh {
			stats.HighPriorityCount++
		}
		if item.Category != nil && *item.Category != "" {
			counts[*item.Category]++
		}
	}

	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		if counts[categories[i]] != counts[categories[j]] {
			return counts[categories[i]] > counts[categories[j]]
		}
		return categories[i] < categories[j]
	})
	if len(categories) > 0 {
		top := categories[0]
		stats.MostCommonCategory = &top
	}

	return stats
}
