package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TitleMinLen = 3
	TitleMaxLen = 100
)

var ErrValidation = errors.New("validation failed")

var (
	ErrEmptyTitle    = validationError("Title is required")
	ErrTitleTooShort = validationError(fmt.Sprintf("Title must be at least %d characters", TitleMinLen))
	ErrTitleTooLong  = validationError(fmt.Sprintf("Title must be less than %d characters", TitleMaxLen))
	ErrMissingDate   = validationError("Due date is required")
	ErrInvalidDate   = validationError("Due date must be a date (YYYY-MM-DD)")
	ErrPastDate      = validationError("Due date cannot be in the past")
)

type ruleError struct {
	msg string
}

func validationError(msg string) error { return &ruleError{msg: msg} }

func (e *ruleError) Error() string        { return e.msg }
func (e *ruleError) Is(target error) bool { return target == ErrValidation }

// Field names a validated form field.
type Field int

const (
	FieldTitle Field = iota
	FieldDueDate
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldDueDate:
		return "dueDate"
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// FieldError attaches a rule violation to the field it came from.
type FieldError struct {
	Field Field
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func ValidateTitle(candidate string) error {
	if strings.TrimSpace(candidate) == "" {
		return ErrEmptyTitle
	}
	n := utf8.RuneCountInString(candidate)
	if n < TitleMinLen {
		return ErrTitleTooShort
	}
	if n > TitleMaxLen {
		return ErrTitleTooLong
	}
	return nil
}

// ValidateDueDate rejects missing, unparsable and past dates. Comparison is
// by calendar day, so today is accepted.
func ValidateDueDate(candidate string, now time.Time) error {
	if strings.TrimSpace(candidate) == "" {
		return ErrMissingDate
	}
	d, err := ParseDate(candidate)
	if err != nil {
		return ErrInvalidDate
	}
	if d.Before(DateOf(now)) {
		return ErrPastDate
	}
	return nil
}

func ValidateField(field Field, value string, now time.Time) error {
	switch field {
	case FieldTitle:
		return ValidateTitle(value)
	case FieldDueDate:
		return ValidateDueDate(value, now)
	}
	return nil
}

// ValidateForm checks every validated field of f. The result joins one
// *FieldError per failing field, or is nil.
func ValidateForm(f FormData, now time.Time) error {
	var errs []error
	if err := ValidateField(FieldTitle, f.Title, now); err != nil {
		errs = append(errs, &FieldError{Field: FieldTitle, Err: err})
	}
	if err := ValidateField(FieldDueDate, f.DueDate, now); err != nil {
		errs = append(errs, &FieldError{Field: FieldDueDate, Err: err})
	}
	return errors.Join(errs...)
}

// FieldErrors unpacks the per-field failures from a ValidateForm result.
func FieldErrors(err error) map[Field]error {
	out := map[Field]error{}
	if err == nil {
		return out
	}
	var walk func(error)
	walk = func(e error) {
		var fe *FieldError
		if errors.As(e, &fe) {
			if _, seen := out[fe.Field]; !seen {
				out[fe.Field] = fe.Err
			}
		}
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}
