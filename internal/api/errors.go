package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eternisai/maintenance-tracker/internal/requests"
)

// TransportError is a network failure (StatusCode 0) or a non-2xx response
// that is not a validation rejection.
type TransportError struct {
	StatusCode int
	// Message is the server-provided error message, if the body carried one.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.StatusCode != 0:
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	case e.Err != nil:
		return e.Err.Error()
	}
	return "request failed"
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError is a 400 or 422 rejection of a create payload.
type ValidationError struct {
	StatusCode int
	Message    string
	Fields     requests.FieldErrors
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) > 0 {
		return e.Fields.Error()
	}
	return "validation failed"
}

// errorBody covers both error shapes a backend may send:
//
//	{"error": "...", "details": {"field": "message"}}
//	{"detail": "..."} or {"detail": [{"loc": ["body", "field"], "msg": "..."}]}
type errorBody struct {
	Error   string          `json:"error"`
	Details map[string]any  `json:"details"`
	Detail  json.RawMessage `json:"detail"`
}

type detailItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// decodeErrorBody extracts a message and per-field messages from body. An
// unrecognized body yields empty results.
func decodeErrorBody(body []byte) (string, requests.FieldErrors) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return "", nil
	}

	fields := requests.FieldErrors{}
	message := strings.TrimSpace(eb.Error)
	for field, v := range eb.Details {
		if s, ok := v.(string); ok {
			fields[field] = s
		} else {
			fields[field] = fmt.Sprint(v)
		}
	}

	if len(eb.Detail) > 0 {
		var s string
		var items []detailItem
		switch {
		case json.Unmarshal(eb.Detail, &s) == nil:
			if message == "" {
				message = strings.TrimSpace(s)
			}
		case json.Unmarshal(eb.Detail, &items) == nil:
			for _, item := range items {
				field := fieldFromLoc(item.Loc)
				if _, seen := fields[field]; !seen {
					fields[field] = item.Msg
				}
			}
			if message == "" && len(items) > 0 {
				message = items[0].Msg
			}
		}
	}

	if len(fields) == 0 {
		fields = nil
	}
	return message, fields
}

// fieldFromLoc returns the last string element of a FastAPI error location,
// e.g. ["body", "title"] -> "title".
func fieldFromLoc(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" && s != "query" {
			return s
		}
	}
	return "request"
}
