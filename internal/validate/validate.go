// Package validate checks and repairs the structured payload a backend
// returned before it is accepted as a transaction. Coercion is the rule
// here, not rejection: a low-quality extraction with warnings is more useful
// to the operator than a silently dropped financial record.
package validate

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"ledgerscan/constants"
	"ledgerscan/internal/document"
)

// Rejection is the permanent, payload-level failure: the response carries
// too little data to record a transaction at all.
type Rejection struct {
	Reason string
}

func (e *Rejection) Error() string { return e.Reason }

// Date layouts accepted before a date is declared unusable, ISO first.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"01/02/2006",
	"2006/01/02",
	"2 January 2006",
	"Jan 2, 2006",
}

type Validator struct {
	categories []string
	logger     *slog.Logger
}

func New(categories []string, logger *slog.Logger) *Validator {
	if len(categories) == 0 {
		categories = constants.DefaultCategories
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{categories: categories, logger: logger}
}

// Validate turns a raw extraction response into a ValidatedTransaction, or
// returns a *Rejection when both the date and the direction are unusable.
// Every repair is recorded as a warning on the transaction and logged.
func (v *Validator) Validate(resp document.ExtractionResponse) (*document.ValidatedTransaction, error) {
	var warnings []string
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		warnings = append(warnings, msg)
		v.logger.Warn("validate.warning", "detail", msg)
	}

	class := constants.ParseDocumentClass(resp.DocumentClass)

	// Direction: the model's answer if usable, else derived from the
	// document class.
	direction, directionOK := constants.ParseDirection(resp.Direction)
	if !directionOK {
		if derived, ok := constants.ExpectedDirection(class); ok {
			direction = derived
			directionOK = true
			warn("direction derived: model gave %q, using %q implied by class %q", resp.Direction, derived, class)
		}
	}

	// Date: ISO first, then common layouts; normalized back to ISO.
	date, dateOK := parseDate(resp.Date)
	if !dateOK && resp.Date != nil {
		warn("date unusable: %q does not parse as a calendar date", *resp.Date)
	}

	if !dateOK && !directionOK {
		return nil, &Rejection{Reason: "insufficient data to record a transaction: no usable date and no usable direction"}
	}
	if !directionOK {
		// Date alone is enough to keep the record; scans without any
		// direction signal are overwhelmingly purchases.
		direction = constants.DirectionExpense
		warn("direction missing: defaulting to %q", direction)
	}

	// Numeric coercion: null or absent becomes 0.00, never an error.
	amount, coerced := coerceAmount(resp.Amount)
	if coerced {
		warn("amount coerced: null or missing amount recorded as 0.00")
	}
	taxAmount, coerced := coerceAmount(resp.TaxAmount)
	if coerced {
		warn("tax_amount coerced: null or missing tax recorded as 0.00")
	}

	confidence := 0.0
	if resp.Confidence != nil {
		confidence = math.Min(1, math.Max(0, *resp.Confidence))
	}

	// Advisory consistency check: flagged and logged, never rejected, so a
	// human can resolve the mismatch downstream.
	consistent := true
	if expected, ok := constants.ExpectedDirection(class); ok && expected != direction {
		consistent = false
		warn("consistency mismatch: class %q expects direction %q but got %q", class, expected, direction)
	}

	category := ""
	if resp.Category != nil {
		category = *resp.Category
	}
	if canon, ok := constants.CanonicalizeCategory(category, v.categories); ok {
		category = canon
	} else {
		fallback := constants.FallbackCategory(direction)
		warn("category fallback: %q not in vocabulary, using %q", category, fallback)
		category = fallback
	}

	tx := &document.ValidatedTransaction{
		DocumentClass: class,
		Direction:     direction,
		Date:          date,
		Amount:        amount,
		TaxAmount:     taxAmount,
		Counterparty:  deref(resp.Counterparty),
		Description:   deref(resp.Description),
		Category:      category,
		Confidence:    confidence,
		Consistent:    consistent,
		Warnings:      warnings,
	}
	return tx, nil
}

// parseDate normalizes the model's date string to YYYY-MM-DD. An absent or
// unparsable date yields ("", false); the caller decides whether that is
// fatal.
func parseDate(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	raw := strings.TrimSpace(*s)
	if raw == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// coerceAmount maps null to 0.00 and clamps the sign: monetary magnitudes in
// a transaction record are non-negative, direction carries the sign.
func coerceAmount(p *float64) (value float64, coerced bool) {
	if p == nil {
		return 0.0, true
	}
	return round2(math.Abs(*p)), false
}

// round2 applies 2-decimal currency rounding.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
