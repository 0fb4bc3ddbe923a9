package requests

// Priority is the urgency a submitter assigns to a request.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the lifecycle state of a request. It is assigned by the backend.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// MaintenanceRequest is a server-owned record cached by the client.
// Category and AISummary stay nil until the backend fills them in.
type MaintenanceRequest struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    *string  `json:"category"`
	AISummary   *string  `json:"ai_summary"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	CreatedAt   string   `json:"created_at"`
}

// CreateRequest is the payload accepted by the create endpoint.
// An empty Priority or Status lets the backend apply its default.
type CreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority,omitempty"`
	Status      Status   `json:"status,omitempty"`
}

// Page is the paginated list envelope returned by GET /api/requests.
type Page struct {
	Items []MaintenanceRequest `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Pages int                  `json:"pages"`
}
