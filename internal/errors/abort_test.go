package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
)

func TestAbortHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		abort      func(c *gin.Context)
		wantStatus int
		wantBody   APIError
	}{
		{
			name:       "validation",
			abort:      func(c *gin.Context) { AbortWithValidation(c, map[string]string{"title": "Title is required"}) },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   APIError{Error: "Validation failed", Details: map[string]string{"title": "Title is required"}},
		},
		{
			name:       "bad request",
			abort:      func(c *gin.Context) { AbortWithBadRequest(c, "Invalid JSON body", nil) },
			wantStatus: http.StatusBadRequest,
			wantBody:   APIError{Error: "Invalid JSON body"},
		},
		{
			name:       "not found",
			abort:      func(c *gin.Context) { AbortWithNotFound(c, "Not Found") },
			wantStatus: http.StatusNotFound,
			wantBody:   APIError{Error: "Not Found"},
		},
		{
			name:       "internal",
			abort:      func(c *gin.Context) { AbortWithInternal(c, "Internal server error") },
			wantStatus: http.StatusInternalServerError,
			wantBody:   APIError{Error: "Internal server error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			tt.abort(c)

			if !c.IsAborted() {
				t.Error("context should be aborted")
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var got APIError
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if diff := cmp.Diff(tt.wantBody, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
