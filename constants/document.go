package constants

// DocumentClass is the model's classification of a source document.
type DocumentClass string

const (
	ClassInvoice DocumentClass = "invoice"
	ClassReceipt DocumentClass = "receipt"
	ClassOther   DocumentClass = "other"
)

// Direction is the transaction direction derived from the document class.
// Convention: an invoice the business issued is money coming in, a receipt
// the business collected is money going out.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// ExpectedDirection returns the direction a document class implies, and
// whether the class implies one at all.
func ExpectedDirection(class DocumentClass) (Direction, bool) {
	switch class {
	case ClassInvoice:
		return DirectionIncome, true
	case ClassReceipt:
		return DirectionExpense, true
	default:
		return "", false
	}
}

// ParseDirection canonicalizes a free-form direction label.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionIncome:
		return DirectionIncome, true
	case DirectionExpense:
		return DirectionExpense, true
	default:
		return "", false
	}
}

// ParseDocumentClass canonicalizes a free-form document class label.
// Anything unrecognized maps to "other".
func ParseDocumentClass(s string) DocumentClass {
	switch DocumentClass(s) {
	case ClassInvoice:
		return ClassInvoice
	case ClassReceipt:
		return ClassReceipt
	default:
		return ClassOther
	}
}
