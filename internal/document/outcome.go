package document

// OutcomeKind classifies how processing of one document ended.
type OutcomeKind string

const (
	// OutcomeSucceeded carries a validated transaction; the watcher should
	// archive the source file.
	OutcomeSucceeded OutcomeKind = "SUCCEEDED"
	// OutcomeTransient is a best-effort failure (file vanished, cancelled
	// mid-flight); the file is left in place and may be reprocessed on the
	// next start.
	OutcomeTransient OutcomeKind = "TRANSIENT"
	// OutcomeQuarantined is a permanent failure; the file is left untouched
	// for manual operator intervention.
	OutcomeQuarantined OutcomeKind = "QUARANTINED"
)

// Outcome is the per-document processing result handed back to the watcher.
type Outcome struct {
	Kind         OutcomeKind
	Transaction  *ValidatedTransaction // set only when Kind == OutcomeSucceeded
	ArchivedPath string                // set by the watcher after a successful move
	Reason       string                // human-readable, suitable for operator logs
}

func Succeeded(tx *ValidatedTransaction) Outcome {
	return Outcome{Kind: OutcomeSucceeded, Transaction: tx}
}

func Transient(reason string) Outcome {
	return Outcome{Kind: OutcomeTransient, Reason: reason}
}

func Quarantined(reason string) Outcome {
	return Outcome{Kind: OutcomeQuarantined, Reason: reason}
}
