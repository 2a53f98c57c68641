// Package validation collects field-level violations for request payloads.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Violations maps a field name to the reason it was rejected.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records a violation unless the field already has one.
func (v Violations) Add(field, message string) {
	if _, exists := v[field]; !exists {
		v[field] = message
	}
}

// Item is one violation in the wire format.
type Item struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Items returns the violations sorted by field name.
func (v Violations) Items() []Item {
	items := make([]Item, 0, len(v))
	for f, m := range v {
		items = append(items, Item{Field: f, Message: m})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Field < items[j].Field })
	return items
}

// Err returns nil when there are no violations.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{Violations: v}
}

// Error is returned when a payload fails validation.
type Error struct {
	Violations Violations
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, it := range e.Violations.Items() {
		parts = append(parts, it.Field+": "+it.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ISODate requires a YYYY-MM-DD value.
func ISODate(field, value string, v Violations) {
	if !isoDate.MatchString(value) {
		v.Add(field, "must_be_yyyy_mm_dd")
	}
}
