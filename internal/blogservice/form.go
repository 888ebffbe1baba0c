package blogservice

import (
	"sync"
	"time"
)

// Form keeps the state of one creation form between keystrokes. A field is
// only checked after it was touched (blurred once); from then on every change
// re-checks it. Submit checks everything.
type Form struct {
	mu      sync.Mutex
	input   FormInput
	errors  map[string]string
	touched map[string]bool
}

func NewForm() *Form {
	return &Form{
		errors:  make(map[string]string),
		touched: make(map[string]bool),
	}
}

func (f *Form) set(field, value string) {
	switch field {
	case FieldTitle:
		f.input.Title = value
	case FieldCategory:
		f.input.Category = value
	case FieldCoverImage:
		f.input.CoverImage = value
	case FieldDescription:
		f.input.Description = value
	case FieldContent:
		f.input.Content = value
	}
}

func (f *Form) record(field, message string) {
	if message == "" {
		delete(f.errors, field)
		return
	}
	f.errors[field] = message
}

// Change stores a new value for field and re-checks it if it was touched.
func (f *Form) Change(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.set(field, value)
	if f.touched[field] {
		f.record(field, ValidateField(field, value))
	}
}

// Blur marks field as touched and checks its current value.
func (f *Form) Blur(field string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touched[field] = true
	f.record(field, ValidateField(field, f.input.value(field)))
}

// Submit checks every field. When the form is valid it returns the draft
// and clears the form; otherwise the per-field errors are kept for display.
func (f *Form) Submit(now time.Time) (*Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	draft, err := f.input.Draft(now)
	if err != nil {
		f.errors = make(map[string]string)
		for _, field := range formFields {
			f.touched[field] = true
			f.record(field, ValidateField(field, f.input.value(field)))
		}
		return nil, err
	}

	f.resetLocked()
	return draft, nil
}

func (f *Form) Input() FormInput {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.input
}

// Errors returns a copy of the messages currently shown.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

func (f *Form) Touched(field string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.touched[field]
}

func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resetLocked()
}

func (f *Form) resetLocked() {
	f.input = FormInput{}
	f.errors = make(map[string]string)
	f.touched = make(map[string]bool)
}
