package model

import (
	"time"

	"github.com/formdeck/formdeck/field"
)

type FormStatus string

const (
	StatusDraft     FormStatus = "draft"
	StatusPublished FormStatus = "published"
	StatusArchived  FormStatus = "archived"
)

type ResponseStatus string

const (
	ResponseNew      ResponseStatus = "new"
	ResponseRead     ResponseStatus = "read"
	ResponseFlagged  ResponseStatus = "flagged"
	ResponseArchived ResponseStatus = "archived"
)

type Form struct {
	ID          int          `json:"id,omitempty"`
	Version     int          `json:"version,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      FormStatus   `json:"status"`
	Tags        []string     `json:"tags,omitempty"`
	Settings    FormSettings `json:"settings"`
	Fields      []FormField  `json:"fields"`
	CreatedAt   time.Time    `json:"createdAt,omitempty"`
}

// FormSettings is the typed shape of the per-form configuration bag.
type FormSettings struct {
	MaxSubmissions    *int `json:"maxSubmissions,omitempty"`
	PreventDuplicates bool `json:"preventDuplicates,omitempty"`
}

type FormField struct {
	ID          int               `json:"id,omitempty"`
	FormID      int               `json:"-"`
	Type        field.Type        `json:"type"`
	Label       string            `json:"label"`
	Placeholder string            `json:"placeholder,omitempty"`
	Required    bool              `json:"required"`
	Options     []string          `json:"options,omitempty"`
	Order       int               `json:"order"`
	Settings    map[string]string `json:"settings,omitempty"`
}

type FormResponse struct {
	ID              int                  `json:"id"`
	FormID          int                  `json:"formId"`
	RespondentEmail string               `json:"respondentEmail,omitempty"`
	Status          ResponseStatus       `json:"status"`
	SubmittedAt     time.Time            `json:"submittedAt"`
	IP              string               `json:"-"`
	UserAgent       string               `json:"-"`
	Values          []ResponseFieldValue `json:"values"`
}

// ResponseFieldValue pairs a field id with the submitted answer. The field
// reference is weak: the field may since have been deleted from the form.
type ResponseFieldValue struct {
	FieldID int    `json:"fieldId"`
	Value   string `json:"value"`
}
