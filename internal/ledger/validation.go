package ledger

import (
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

const invalidInputPrefix = "Please provide valid inputs: "

// Field names reported in validation messages.
const (
	FieldAccountNumber    = "account number"
	FieldHolderName       = "account holder name"
	FieldBranch           = "account branch"
	FieldNewBranch        = "new branch"
	FieldDepositAmount    = "deposit amount"
	FieldWithdrawalAmount = "withdrawal amount"
)

// ValidationError reports every malformed input of a single call.
type ValidationError struct {
	Fields []string
	errs   *multierror.Error
}

func (e *ValidationError) Error() string {
	if e.errs == nil {
		return invalidInputPrefix + strings.Join(e.Fields, ", ")
	}
	return invalidInputPrefix + e.errs.Error()
}

func (e *ValidationError) Unwrap() error {
	if e.errs == nil {
		return nil
	}
	return e.errs.ErrorOrNil()
}

type fieldError struct {
	field string
}

func (e *fieldError) Error() string { return e.field }

func joinFields(errs []error) string {
	names := make([]string, len(errs))
	for i, err := range errs {
		names[i] = err.Error()
	}
	return strings.Join(names, ", ")
}

type inputValidator struct {
	errs   *multierror.Error
	fields []string
}

func (v *inputValidator) reject(field string) {
	v.fields = append(v.fields, field)
	v.errs = multierror.Append(v.errs, &fieldError{field: field})
}

func (v *inputValidator) notBlank(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.reject(field)
	}
}

// digits parses a non-negative integer made only of ASCII digits. Signs,
// whitespace, separators and values that overflow int64 are rejected.
func (v *inputValidator) digits(field, value string) int64 {
	if !isDigits(value) {
		v.reject(field)
		return 0
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		v.reject(field)
		return 0
	}
	return n
}

func (v *inputValidator) err() error {
	if v.errs == nil {
		return nil
	}
	v.errs.ErrorFormat = joinFields
	return &ValidationError{Fields: v.fields, errs: v.errs}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func invalidInput(fields ...string) error {
	v := &inputValidator{}
	for _, f := range fields {
		v.reject(f)
	}
	return v.err()
}

// ParseAccountNumber validates a raw account number the same way every ledger
// operation does.
func ParseAccountNumber(raw string) (int64, error) {
	v := &inputValidator{}
	n := v.digits(FieldAccountNumber, raw)
	return n, v.err()
}
