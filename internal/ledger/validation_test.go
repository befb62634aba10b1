package ledger

import (
	"errors"
	"testing"
)

func TestParseAccountNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"plain", "12345", 12345, false},
		{"leading zeros", "00042", 42, false},
		{"zero", "0", 0, false},
		{"max int64", "9223372036854775807", 9223372036854775807, false},
		{"empty", "", 0, true},
		{"letters", "12a45", 0, true},
		{"negative", "-5", 0, true},
		{"plus sign", "+5", 0, true},
		{"whitespace", " 5", 0, true},
		{"decimal", "1.5", 0, true},
		{"non-ascii digit", "١٢٣", 0, true},
		{"overflow", "9223372036854775808", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAccountNumber(tt.input)
			if tt.wantErr {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if vErr.Error() != "Please provide valid inputs: account number" {
					t.Errorf("unexpected message: %s", vErr.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestValidationErrorAggregatesFields(t *testing.T) {
	v := &inputValidator{}
	v.notBlank(FieldHolderName, "")
	v.notBlank(FieldBranch, "   ")
	err := v.err()

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := "Please provide valid inputs: account holder name, account branch"
	if vErr.Error() != want {
		t.Errorf("expected %q, got %q", want, vErr.Error())
	}
	if len(vErr.Fields) != 2 || vErr.Fields[0] != FieldHolderName || vErr.Fields[1] != FieldBranch {
		t.Errorf("unexpected fields: %v", vErr.Fields)
	}
}

func TestValidatorWithoutFailures(t *testing.T) {
	v := &inputValidator{}
	v.notBlank(FieldHolderName, "Ada")
	if n := v.digits(FieldDepositAmount, "100"); n != 100 {
		t.Errorf("expected 100, got %d", n)
	}
	if err := v.err(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestInvalidInput(t *testing.T) {
	err := invalidInput(FieldWithdrawalAmount)
	if err.Error() != "Please provide valid inputs: withdrawal amount" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
