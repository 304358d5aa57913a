// Package submission checks a candidate submission against its form
// definition and normalizes it for persistence.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/formdeck/formdeck/field"
	"github.com/formdeck/formdeck/model"
)

var (
	// ErrNotPublished means the form is not in published status.
	ErrNotPublished = errors.New("form is not accepting submissions")
	// ErrSubmissionLimit means the form's response cap has been reached.
	ErrSubmissionLimit = errors.New("submission limit reached")
)

// ValidationError carries every problem found in a submission, in field order,
// so the client can surface all of them at once.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + strings.Join(e.Details, "; ")
}

type FieldEntry struct {
	FieldID int    `json:"fieldId"`
	Value   string `json:"value"`
}

type Request struct {
	RespondentEmail string       `json:"respondentEmail,omitempty"`
	Fields          []FieldEntry `json:"fields"`
}

// Store is the slice of the response store the validator needs.
type Store interface {
	ResponseCount(ctx context.Context, formID int) (int, error)
	HasRespondentEmail(ctx context.Context, formID int, email string) (bool, error)
}

// Accepted is a validated submission, normalized and ready to persist.
// Blank-valued entries have been dropped.
type Accepted struct {
	RespondentEmail string
	Status          model.ResponseStatus
	Values          []model.ResponseFieldValue
}

// Validate runs the full submission pipeline against form. It returns
// ErrNotPublished or ErrSubmissionLimit without looking at field values,
// a *ValidationError accumulating every field-level problem, or the
// accepted normalized submission.
func Validate(ctx context.Context, store Store, form model.Form, req Request) (*Accepted, error) {
	if form.Status != model.StatusPublished {
		return nil, ErrNotPublished
	}

	if max := form.Settings.MaxSubmissions; max != nil {
		n, err := store.ResponseCount(ctx, form.ID)
		if err != nil {
			return nil, fmt.Errorf("count responses: %w", err)
		}
		if n >= *max {
			return nil, ErrSubmissionLimit
		}
	}

	fieldsByID := make(map[int]model.FormField, len(form.Fields))
	for _, f := range form.Fields {
		fieldsByID[f.ID] = f
	}
	submitted := make(map[int]string, len(req.Fields))
	for _, e := range req.Fields {
		submitted[e.FieldID] = e.Value
	}

	var details []string

	// Required fields must be present and non-blank. Sections never carry
	// a value and are exempt.
	for _, f := range form.Fields {
		if !f.Required || f.Type == field.Section {
			continue
		}
		if strings.TrimSpace(submitted[f.ID]) == "" {
			details = append(details, fmt.Sprintf("%q is required", f.Label))
		}
	}

	// Per-type format check on every non-blank entry. Entries that no
	// longer match a field are tolerated: stale client payloads happen.
	for _, e := range req.Fields {
		f, ok := fieldsByID[e.FieldID]
		if !ok {
			continue
		}
		value := strings.TrimSpace(e.Value)
		if value == "" {
			continue
		}
		if !field.Validate(f.Type, value) {
			details = append(details, fmt.Sprintf("%q has an invalid value", f.Label))
		}
	}

	// Choice fields only accept configured options. Checkbox submissions
	// carry comma-joined tokens; the split does not escape commas, so an
	// option containing one cannot be represented (known limitation).
	for _, e := range req.Fields {
		f, ok := fieldsByID[e.FieldID]
		if !ok || !field.IsChoice(f.Type) || len(f.Options) == 0 {
			continue
		}
		value := strings.TrimSpace(e.Value)
		if value == "" {
			continue
		}
		for _, token := range strings.Split(value, ",") {
			if !containsOption(f.Options, token) {
				details = append(details, fmt.Sprintf("%q does not allow option %q", f.Label, token))
			}
		}
	}

	// Exact, case-sensitive email comparison, matching current behavior.
	if form.Settings.PreventDuplicates && req.RespondentEmail != "" {
		dup, err := store.HasRespondentEmail(ctx, form.ID, req.RespondentEmail)
		if err != nil {
			return nil, fmt.Errorf("check duplicate email: %w", err)
		}
		if dup {
			details = append(details, "a response with this email was already recorded")
		}
	}

	if len(details) > 0 {
		return nil, &ValidationError{Details: details}
	}

	acc := &Accepted{
		RespondentEmail: req.RespondentEmail,
		Status:          model.ResponseNew,
	}
	for _, e := range req.Fields {
		if _, ok := fieldsByID[e.FieldID]; !ok {
			continue
		}
		if strings.TrimSpace(e.Value) == "" {
			continue
		}
		acc.Values = append(acc.Values, model.ResponseFieldValue{FieldID: e.FieldID, Value: e.Value})
	}
	return acc, nil
}

func containsOption(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
