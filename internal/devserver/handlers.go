package devserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eternisai/maintenance-tracker/internal/errors"
	"github.com/eternisai/maintenance-tracker/internal/events"
	"github.com/eternisai/maintenance-tracker/internal/logger"
	"github.com/eternisai/maintenance-tracker/internal/requests"
)

const (
	// MaxLimit is the largest page the list endpoint serves.
	MaxLimit = 100

	welcomeMessage = "Welcome to MRT API - Server is Running!"
)

// Handler serves the maintenance request API from a Repository.
type Handler struct {
	repo        *Repository
	notifier    events.Notifier
	categorizer Categorizer
	logger      *logger.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCategorizer replaces the default KeywordCategorizer.
func WithCategorizer(c Categorizer) HandlerOption {
	return func(h *Handler) {
		if c != nil {
			h.categorizer = c
		}
	}
}

// NewHandler creates a handler. notifier may be nil.
func NewHandler(repo *Repository, notifier events.Notifier, log *logger.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		repo:        repo,
		notifier:    notifier,
		categorizer: NewKeywordCategorizer(),
		logger:      log.WithComponent("devserver"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Root handles GET /
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": welcomeMessage})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListRequests handles GET /api/requests?skip&limit
func (h *Handler) ListRequests(c *gin.Context) {
	details := map[string]string{}
	skip := queryInt(c, "skip", 0, details)
	limit := queryInt(c, "limit", requests.DefaultPageSize, details)

	if _, bad := details["skip"]; !bad && skip < 0 {
		details["skip"] = "skip must be greater than or equal to 0"
	}
	if _, bad := details["limit"]; !bad && (limit < 1 || limit > MaxLimit) {
		details["limit"] = "limit must be between 1 and " + strconv.Itoa(MaxLimit)
	}
	if len(details) > 0 {
		errors.AbortWithValidation(c, details)
		return
	}

	items, total := h.repo.List(skip, limit)
	c.JSON(http.StatusOK, requests.Page{
		Items: items,
		Total: total,
		Page:  requests.PageOf(skip, limit),
		Pages: requests.PageCount(total, limit),
	})
}

// CreateRequest handles POST /api/requests
func (h *Handler) CreateRequest(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.logger.WithContext(ctx)

	var payload requests.CreateRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		errors.AbortWithBadRequest(c, "Invalid JSON body", nil)
		return
	}

	payload = payload.WithDefaults()
	if payload.Status == "" {
		payload.Status = requests.StatusPending
	}
	if fieldErrs := payload.Validate(); fieldErrs != nil {
		log.Debug("rejected create payload", slog.String("errors", fieldErrs.Error()))
		errors.AbortWithValidation(c, fieldErrs)
		return
	}

	class := h.categorizer.Categorize(ctx, payload.Title, payload.Description)
	if class.Category == "" {
		class.Category = DefaultCategory
	}
	if class.Summary == "" {
		class.Summary = DefaultSummary
	}

	created := h.repo.Create(payload, class)
	log.Info("request created",
		slog.Int64("id", created.ID),
		slog.String("category", class.Category),
		slog.String("priority", string(created.Priority)))

	if h.notifier != nil {
		h.notifier.Notify(ctx, events.RequestsChanged(created.ID))
	}

	c.JSON(http.StatusCreated, created)
}

// Stats handles GET /api/analytics/stats
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.repo.Stats())
}

// queryInt reads an integer query parameter, recording a message in details
// when it is present but not an integer.
func queryInt(c *gin.Context, name string, fallback int, details map[string]string) int {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		details[name] = name + " must be an integer"
		return fallback
	}
	return n
}
