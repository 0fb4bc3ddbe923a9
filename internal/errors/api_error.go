package errors

// APIError is the JSON body of every non-2xx response served by the backend.
type APIError struct {
	Error string `json:"error"`
	// Details maps a request field to what is wrong with it.
	Details map[string]string `json:"details,omitempty"`
}

// NewAPIError creates a new APIError with the given message and optional details.
func NewAPIError(message string, details map[string]string) *APIError {
	return &APIError{
		Error:   message,
		Details: details,
	}
}
