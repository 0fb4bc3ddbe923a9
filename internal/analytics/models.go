package analytics

// Stats is the aggregate snapshot served by GET /api/analytics/stats. The
// counts cover the whole collection, not a page of it.
type Stats struct {
	TotalRequests int `json:"total_requests"`
	// MostCommonCategory is nil when no request has been categorized yet.
	MostCommonCategory *string `json:"most_common_category"`
	HighPriorityCount  int     `json:"high_priority_count"`
}

// CategoryOr returns the most common category, or fallback when there is none.
func (s Stats) CategoryOr(fallback string) string {
	if s.MostCommonCategory == nil || *s.MostCommonCategory == "" {
		return fallback
	}
	return *s.MostCommonCategory
}
