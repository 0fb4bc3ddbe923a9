package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/eternisai/maintenance-tracker/internal/api"
	"github.com/eternisai/maintenance-tracker/internal/requests"
)

// ErrSubmitInProgress is returned when Submit is called while a previous
// submission has not finished.
var ErrSubmitInProgress = errors.New("a submission is already in progress")

// Creator submits a new request; *requests.Store implements it.
type Creator interface {
	Create(ctx context.Context, payload requests.CreateRequest) (*requests.MaintenanceRequest, error)
}

// FormState is a copy of the form's fields and feedback.
type FormState struct {
	Title        string
	Description  string
	Priority     requests.Priority
	IsSubmitting bool
	// FieldErrors holds per-field messages from local or backend validation.
	FieldErrors requests.FieldErrors
	// SubmitErr is the inline error of the last failed submission.
	SubmitErr string
}

// Form holds create-request input. Values are reset only after a successful
// submission; a failed one keeps them and records the error inline.
type Form struct {
	creator Creator

	mu    sync.Mutex
	state FormState
}

// NewForm returns an empty form with the default priority.
func NewForm(creator Creator) *Form {
	return &Form{
		creator: creator,
		state:   FormState{Priority: requests.PriorityLow},
	}
}

// Set replaces the input values.
func (f *Form) Set(title, description string, priority requests.Priority) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Title = title
	f.state.Description = description
	f.state.Priority = priority
}

// State returns a copy of the form state.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.state
	if f.state.FieldErrors != nil {
		st.FieldErrors = make(requests.FieldErrors, len(f.state.FieldErrors))
		for k, v := range f.state.FieldErrors {
			st.FieldErrors[k] = v
		}
	}
	return st
}

// Submit validates the input and hands it to the creator.
func (f *Form) Submit(ctx context.Context) (*requests.MaintenanceRequest, error) {
	f.mu.Lock()
	if f.state.IsSubmitting {
		f.mu.Unlock()
		return nil, ErrSubmitInProgress
	}

	payload := requests.CreateRequest{
		Title:       f.state.Title,
		Description: f.state.Description,
		Priority:    f.state.Priority,
	}.WithDefaults()

	if fieldErrs := payload.Validate(); fieldErrs != nil {
		f.state.FieldErrors = fieldErrs
		f.state.SubmitErr = ""
		f.mu.Unlock()
		return nil, fieldErrs
	}

	f.state.IsSubmitting = true
	f.state.FieldErrors = nil
	f.state.SubmitErr = ""
	f.mu.Unlock()

	created, err := f.creator.Create(ctx, payload)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.IsSubmitting = false

	if err != nil {
		f.state.SubmitErr = err.Error()
		var ve *api.ValidationError
		if errors.As(err, &ve) && len(ve.Fields) > 0 {
			f.state.FieldErrors = ve.Fields
		}
		return nil, err
	}

	f.state = FormState{Priority: requests.PriorityLow}
	return created, nil
}
