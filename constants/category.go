package constants

import "strings"

// DefaultCategories is the fallback vocabulary used when configuration does
// not supply a jurisdiction-specific list. The pipeline treats the vocabulary
// as opaque; only the generic fallbacks below carry meaning.
var DefaultCategories = []string{
	"Office Supplies",
	"Office Equipment",
	"Software Subscription",
	"Travel Expenses",
	"Meals",
	"Professional Services",
	"Rent",
	"Insurance",
	"Sales Revenue",
	"Consulting Revenue",
	"Other Income",
	"Other Expense",
}

// Generic categories substituted when the model picks a label outside the
// supplied vocabulary.
const (
	FallbackIncomeCategory  = "Other Income"
	FallbackExpenseCategory = "Other Expense"
)

// CanonicalizeCategory matches a model-supplied label against the vocabulary,
// ignoring case and surrounding whitespace. Returns the canonical vocabulary
// entry and whether a match was found.
func CanonicalizeCategory(label string, vocabulary []string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return "", false
	}
	for _, entry := range vocabulary {
		if normalized == strings.ToLower(strings.TrimSpace(entry)) {
			return entry, true
		}
	}
	return "", false
}

// FallbackCategory returns the generic category appropriate to a direction.
func FallbackCategory(dir Direction) string {
	if dir == DirectionIncome {
		return FallbackIncomeCategory
	}
	return FallbackExpenseCategory
}
