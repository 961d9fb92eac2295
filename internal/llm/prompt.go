package llm

import (
	"strings"

	"ledgerscan/constants"
	"ledgerscan/internal/document"
)

// BuildSystemPrompt composes the system message with the classification
// rules, the direction convention, the allowed category vocabulary, and
// strict-but-practical formatting rules.
func BuildSystemPrompt(req document.ExtractionRequest) string {
	var catLine string
	if len(req.Categories) > 0 {
		catLine = "The 'category' MUST be exactly one of the allowed enum. " +
			"Allowed categories (enum): " + strings.Join(req.Categories, ", ") + ". "
	} else {
		catLine = "The 'category' must be a short, sensible label. "
	}

	parts := []string{
		"You are a financial document parser for a bookkeeping application. Return ONLY one JSON object matching the provided JSON Schema.",
		"First classify the document: 'invoice' (a bill the business issued), 'receipt' (proof of a purchase), or 'other'.",
		"Then set 'direction' by the fixed rule: invoice means 'income', receipt means 'expense'.",
		"Use ISO-8601 dates (YYYY-MM-DD) for 'date'.",
		"'amount' is the gross monetary total, 'tax_amount' the included tax; both plain numbers, no currency symbols.",
		"'counterparty' is the other party's name (merchant or customer).",
		"For 'description', summarize the visible line items in a concise, business-appropriate phrase.",
		catLine,
		"Report 'confidence' between 0 and 1 for the extraction as a whole.",
		"If a field is not legible or not present, use null. Never invent values.",
		"No prose, no code fences, no explanation outside the JSON object.",
	}

	if req.ClassHint != "" && req.ClassHint != constants.ClassOther {
		parts = append(parts, "Hint: this document is expected to be a "+string(req.ClassHint)+"; verify against the image before accepting the hint.")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the per-request nudge accompanying the frames.
func BuildUserPrompt(req document.ExtractionRequest) string {
	var b strings.Builder
	if len(req.Frames) == 1 {
		b.WriteString("Attached is one page of a scanned financial document.")
	} else {
		b.WriteString("Attached are the pages of a scanned financial document, in order.")
	}
	b.WriteString(" Extract the transaction data into exactly one JSON object per the schema.")
	return b.String()
}
