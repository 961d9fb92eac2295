// Package document holds the data model shared across the ingestion and
// extraction pipeline: the identity of a file awaiting processing, the
// normalized raster frames produced from it, the wire-level extraction
// payloads, and the validated transaction record the pipeline emits.
package document

import (
	"time"

	"ledgerscan/constants"
)

// SourceDocument identifies a file awaiting processing. Created by the
// watcher on enumeration or on a creation event; immutable afterwards.
type SourceDocument struct {
	Path         string
	Format       constants.Format
	Size         int64
	DiscoveredAt time.Time
}

// Frame is one renderable page as encoded raster data. Owned by the
// normalizer during a single extraction attempt; never persisted.
type Frame struct {
	PageIndex int
	Width     int
	Height    int
	MIMEType  string
	Data      []byte // JPEG or PNG bytes, bounded by the configured edge cap
}

// ExtractionRequest is what a backend needs for one extraction attempt.
type ExtractionRequest struct {
	Frames     []Frame
	Categories []string // jurisdiction vocabulary, opaque to the pipeline
	ClassHint  constants.DocumentClass
}

// ExtractionResponse is the backend's structured output. The model is not
// guaranteed to populate every field, so everything that can legally be
// absent is a pointer.
type ExtractionResponse struct {
	DocumentClass string   `json:"document_class"`
	Direction     string   `json:"direction"`
	Date          *string  `json:"date"`
	Amount        *float64 `json:"amount"`
	TaxAmount     *float64 `json:"tax_amount"`
	Counterparty  *string  `json:"counterparty"`
	Description   *string  `json:"description"`
	Category      *string  `json:"category"`
	Confidence    *float64 `json:"confidence"`
}

// ValidatedTransaction is the pipeline's terminal output: numeric fields are
// never null, direction is resolved, and the date parses as a calendar date.
// Consistent is false when document class and direction disagree with the
// invoice=income / receipt=expense convention.
type ValidatedTransaction struct {
	DocumentClass constants.DocumentClass
	Direction     constants.Direction
	Date          string // YYYY-MM-DD
	Amount        float64
	TaxAmount     float64
	Counterparty  string
	Description   string
	Category      string
	Confidence    float64
	Consistent    bool
	Warnings      []string // coercions and repairs applied during validation
}
