package requests

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the longest title the backend stores.
const MaxTitleLength = 255

// FieldErrors maps a payload field name to a human-readable problem.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+fe[field])
	}
	return strings.Join(parts, "; ")
}

// WithDefaults returns a copy of r with the default priority filled in.
func (r CreateRequest) WithDefaults() CreateRequest {
	if r.Priority == "" {
		r.Priority = PriorityLow
	}
	return r
}

// Validate applies the form rules. The store never calls it; it is for the
// layer that collects input before Create.
func (r CreateRequest) Validate() FieldErrors {
	errs := FieldErrors{}

	switch n := utf8.RuneCountInString(r.Title); {
	case strings.TrimSpace(r.Title) == "":
		errs["title"] = "Title is required"
	case n > MaxTitleLength:
		errs["title"] = "Title must be 255 characters or fewer"
	}

	if strings.TrimSpace(r.Description) == "" {
		errs["description"] = "Description is required"
	}

	if r.Priority != "" && !r.Priority.Valid() {
		errs["priority"] = "Priority must be one of Low, Medium, High"
	}

	if r.Status != "" && !r.Status.Valid() {
		errs["status"] = "Status must be one of Pending, In Progress, Completed"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
