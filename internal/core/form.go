package core

import (
	"fmt"
	"strings"
)

const (
	FieldText        FieldType = "text"
	FieldNumber      FieldType = "number"
	FieldDate        FieldType = "date"
	FieldChoice      FieldType = "choice"
	FieldMultiChoice FieldType = "multi_choice"
)

type (
	FieldType string

	// FieldOption is one selectable answer. Value is always populated at
	// construction time; nothing downstream computes fallbacks.
	FieldOption struct {
		ID    string
		Label string
		Value string
	}

	// ConditionalRule makes a field visible only when another field's
	// answer intersects the expected values.
	ConditionalRule struct {
		FieldID  string
		Expected []string
	}

	FormField struct {
		ID       string
		Label    string
		Type     FieldType
		Required bool
		Options  []FieldOption
		Rule     *ConditionalRule
	}

	Form struct {
		ID       int64
		TenantID int64
		Title    string
		Fields   []FormField
	}

	// Responses maps field id to the answered values. Single-answer fields
	// carry one element.
	Responses map[string][]string

	// ValidationError lists the required-and-visible fields left empty at
	// submission time.
	ValidationError struct {
		FieldIDs []string
	}
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: missing required fields %v", e.FieldIDs)
}

// NewFieldOption builds an option, defaulting a blank value to the label and
// a blank label to the id.
func NewFieldOption(id, label, value string) FieldOption {
	if label == "" {
		label = id
	}
	if value == "" {
		value = label
	}
	return FieldOption{ID: id, Label: label, Value: value}
}

// HasOptions reports whether the field's answers are enumerable, which a
// conditional rule needs to reference it.
func (f FormField) HasOptions() bool {
	return len(f.Options) > 0
}

// ValidateSchema checks a form at authoring time. A rule that references a
// missing field, an option-less field, or its own field is rejected with
// ErrInvalidConditionalRule before the form can ever be served.
func ValidateSchema(form Form) error {
	byID := make(map[string]FormField, len(form.Fields))
	for _, f := range form.Fields {
		if strings.TrimSpace(f.ID) == "" {
			return fmt.Errorf("form %q: field with empty id", form.Title)
		}
		if _, dup := byID[f.ID]; dup {
			return fmt.Errorf("form %q: duplicate field id %q", form.Title, f.ID)
		}
		byID[f.ID] = f
	}

	for _, f := range form.Fields {
		if f.Rule == nil {
			continue
		}
		if f.Rule.FieldID == f.ID {
			return fmt.Errorf("field %q references itself: %w", f.ID, ErrInvalidConditionalRule)
		}
		ref, ok := byID[f.Rule.FieldID]
		if !ok {
			return fmt.Errorf("field %q references unknown field %q: %w", f.ID, f.Rule.FieldID, ErrInvalidConditionalRule)
		}
		if !ref.HasOptions() {
			return fmt.Errorf("field %q references option-less field %q: %w", f.ID, f.Rule.FieldID, ErrInvalidConditionalRule)
		}
		if len(f.Rule.Expected) == 0 {
			return fmt.Errorf("field %q rule has no expected values: %w", f.ID, ErrInvalidConditionalRule)
		}
	}
	return nil
}

// IsFieldVisible resolves a field's visibility against the current answers.
// Fields without a rule are always visible; ruled fields show when the
// referenced answer intersects the expected set, which covers both the
// scalar-equality and the multi-select case.
func IsFieldVisible(f FormField, resp Responses) bool {
	if f.Rule == nil {
		return true
	}
	answered := resp[f.Rule.FieldID]
	for _, got := range answered {
		for _, want := range f.Rule.Expected {
			if got == want {
				return true
			}
		}
	}
	return false
}

// Validate walks the form's fields in declared order, recomputing visibility
// from the answers on every pass, and collects each required, visible field
// whose answer is empty. Invisible required fields never block submission.
func Validate(form Form, resp Responses) error {
	var missing []string
	for _, f := range form.Fields {
		if !f.Required || !IsFieldVisible(f, resp) {
			continue
		}
		if isEmptyAnswer(resp[f.ID]) {
			missing = append(missing, f.ID)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{FieldIDs: missing}
	}
	return nil
}

func isEmptyAnswer(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
