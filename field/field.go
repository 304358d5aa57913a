// Package field is the closed registry of form field types. Every type knows
// its default placeholder, whether it carries an option list and how to tell
// a valid submitted value from garbage.
package field

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Type identifies one kind of form input.
type Type string

const (
	ShortText  Type = "short-text"
	LongText   Type = "long-text"
	Email      Type = "email"
	Phone      Type = "phone"
	Number     Type = "number"
	URL        Type = "url"
	Date       Type = "date"
	Dropdown   Type = "dropdown"
	Radio      Type = "radio"
	Checkbox   Type = "checkbox"
	Rating     Type = "rating"
	FileUpload Type = "file-upload"
	Section    Type = "section"
)

// validator checks a single submitted raw value for one field type.
type validator interface {
	validate(raw string) bool
}

type kind struct {
	placeholder    string
	acceptsOptions bool
	validator      validator
}

var registry = map[Type]kind{
	ShortText:  {placeholder: "Type your answer...", validator: textValidator{}},
	LongText:   {placeholder: "Type your answer...", validator: textValidator{}},
	Email:      {placeholder: "name@example.com", validator: emailValidator{}},
	Phone:      {placeholder: "+1 555 000 0000", validator: phoneValidator{}},
	Number:     {placeholder: "0", validator: numberValidator{}},
	URL:        {placeholder: "https://example.com", validator: urlValidator{}},
	Date:       {validator: dateValidator{}},
	Dropdown:   {placeholder: "Select an option", acceptsOptions: true, validator: textValidator{}},
	Radio:      {acceptsOptions: true, validator: textValidator{}},
	Checkbox:   {acceptsOptions: true, validator: textValidator{}},
	Rating:     {validator: ratingValidator{}},
	FileUpload: {validator: textValidator{}},
	Section:    {validator: sectionValidator{}},
}

// Known reports whether t is a registered field type.
func Known(t Type) bool {
	_, ok := registry[t]
	return ok
}

// DefaultPlaceholder returns the builder's default placeholder text for t,
// or the empty string when the type has none.
func DefaultPlaceholder(t Type) string {
	return registry[t].placeholder
}

// AcceptsOptions reports whether fields of type t carry an option list.
func AcceptsOptions(t Type) bool {
	return registry[t].acceptsOptions
}

// IsChoice reports whether submitted values for t are constrained to the
// field's configured options.
func IsChoice(t Type) bool {
	return AcceptsOptions(t)
}

// Validate reports whether raw is an acceptable value for a field of type t.
// Unknown types never validate.
func Validate(t Type, raw string) bool {
	s, ok := registry[t]
	if !ok {
		return false
	}
	return s.validator.validate(raw)
}

type textValidator struct{}

func (textValidator) validate(raw string) bool {
	return strings.TrimSpace(raw) != ""
}

// Intentionally loose: local@domain.tld, no RFC 5322 ambitions.
var reEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type emailValidator struct{}

func (emailValidator) validate(raw string) bool {
	return reEmail.MatchString(raw)
}

var rePhone = regexp.MustCompile(`^\+?[1-9][0-9]{0,15}$`)

type phoneValidator struct{}

func (phoneValidator) validate(raw string) bool {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, raw)
	return rePhone.MatchString(stripped)
}

type numberValidator struct{}

func (numberValidator) validate(raw string) bool {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return err == nil && !math.IsNaN(n) && !math.IsInf(n, 0)
}

type urlValidator struct{}

func (urlValidator) validate(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && u.Scheme != "" && u.Host != ""
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

type dateValidator struct{}

func (dateValidator) validate(raw string) bool {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, raw); err == nil {
			return true
		}
	}
	return false
}

type ratingValidator struct{}

func (ratingValidator) validate(raw string) bool {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return err == nil && n >= 1 && n <= 5
}

// Sections are display-only and never carry a value.
type sectionValidator struct{}

func (sectionValidator) validate(string) bool {
	return true
}
