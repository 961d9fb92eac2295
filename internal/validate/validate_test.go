package validate

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"ledgerscan/constants"
	"ledgerscan/internal/document"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }
func fPtr(f float64) *float64 { return &f }

func vocabulary() []string {
	return []string{"Meals", "Travel Expenses", "Other Income", "Other Expense"}
}

func TestValidate_NullNumericsCoerced(t *testing.T) {
	v := New(vocabulary(), discardLogger())
	tx, err := v.Validate(document.ExtractionResponse{
		DocumentClass: "receipt",
		Direction:     "expense",
		Date:          strPtr("2024-05-01"),
		Amount:        nil,
		TaxAmount:     nil,
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if tx.Amount != 0.0 || tx.TaxAmount != 0.0 {
		t.Errorf("amount/tax = %v/%v, want 0/0", tx.Amount, tx.TaxAmount)
	}
	found := 0
	for _, w := range tx.Warnings {
		if strings.Contains(w, "coerced") {
			found++
		}
	}
	if found != 2 {
		t.Errorf("coercion warnings = %d (%v), want 2", found, tx.Warnings)
	}
}

func TestValidate_ConsistencyFlagNonBlocking(t *testing.T) {
	v := New(vocabulary(), discardLogger())
	tx, err := v.Validate(document.ExtractionResponse{
		DocumentClass: "invoice",
		Direction:     "expense",
		Date:          strPtr("2024-05-01"),
		Amount:        fPtr(120),
	})
	if err != nil {
		t.Fatalf("Validate() rejected a consistency mismatch: %v", err)
	}
	if tx.Consistent {
		t.Error("Consistent = true, want false for invoice/expense")
	}
	if tx.Direction != constants.DirectionExpense {
		t.Errorf("Direction = %q, want the model's answer kept", tx.Direction)
	}
}

func TestValidate_InsufficientDataRejected(t *testing.T) {
	v := New(vocabulary(), discardLogger())
	_, err := v.Validate(document.ExtractionResponse{
		DocumentClass: "other",
		Direction:     "",
		Date:          strPtr("not a date"),
		Amount:        fPtr(10),
	})
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want *Rejection", err)
	}
	if !strings.Contains(rej.Reason, "insufficient data") {
		t.Errorf("Reason = %q", rej.Reason)
	}
}

func TestValidate_DirectionDerivedFromClass(t *testing.T) {
	v := New(vocabulary(), discardLogger())
	tx, err := v.Validate(document.ExtractionResponse{
		DocumentClass: "invoice",
		Direction:     "",
		Date:          nil,
		Amount:        fPtr(300),
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if tx.Direction != constants.DirectionIncome {
		t.Errorf("Direction = %q, want income derived from invoice", tx.Direction)
	}
	if !tx.Consistent {
		t.Error("derived direction should agree with its own class")
	}
}

func TestValidate_CategoryFallback(t *testing.T) {
	tests := []struct {
		name      string
		category  *string
		direction string
		want      string
	}{
		{"unknown category, expense", strPtr("Foo"), "expense", "Other Expense"},
		{"unknown category, income", strPtr("Foo"), "income", "Other Income"},
		{"absent category", nil, "expense", "Other Expense"},
		{"known category kept", strPtr("meals"), "expense", "Meals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(vocabulary(), discardLogger())
			tx, err := v.Validate(document.ExtractionResponse{
				DocumentClass: "receipt",
				Direction:     tt.direction,
				Date:          strPtr("2024-05-01"),
				Amount:        fPtr(10),
				Category:      tt.category,
			})
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tx.Category != tt.want {
				t.Errorf("Category = %q, want %q", tx.Category, tt.want)
			}
		})
	}
}

func TestValidate_DateLayoutsRepaired(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-07", "2024-03-07"},
		{"07.03.2024", "2024-03-07"},
		{"03/07/2024", "2024-03-07"},
		{"Mar 7, 2024", "2024-03-07"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := New(vocabulary(), discardLogger())
			tx, err := v.Validate(document.ExtractionResponse{
				DocumentClass: "receipt",
				Direction:     "expense",
				Date:          strPtr(tt.in),
				Amount:        fPtr(10),
			})
			if err != nil {
				t.Fatalf("Validate(%q) error = %v", tt.in, err)
			}
			if tx.Date != tt.want {
				t.Errorf("Date = %q, want %q", tx.Date, tt.want)
			}
		})
	}
}

func TestValidate_AmountRoundingAndSign(t *testing.T) {
	v := New(vocabulary(), discardLogger())
	tx, err := v.Validate(document.ExtractionResponse{
		DocumentClass: "receipt",
		Direction:     "expense",
		Date:          strPtr("2024-05-01"),
		Amount:        fPtr(-12.005),
		TaxAmount:     fPtr(1.9999),
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if tx.Amount < 0 || tx.TaxAmount < 0 {
		t.Errorf("negative amounts survived: %v / %v", tx.Amount, tx.TaxAmount)
	}
	if tx.Amount != 12.0 && tx.Amount != 12.01 {
		t.Errorf("Amount = %v, want 2-decimal rounding of 12.005", tx.Amount)
	}
	if tx.TaxAmount != 2.0 {
		t.Errorf("TaxAmount = %v, want 2.00", tx.TaxAmount)
	}
}
