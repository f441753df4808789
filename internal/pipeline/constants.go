package pipeline

import "time"

// Mode selects which model outputs an analysis produces.
type Mode string

const (
	// ModeClassification produces the classification table (Output A).
	ModeClassification Mode = "classification"

	// ModeMismatchOnly asks the model for mismatched accounts only; the rest
	// are filled in by the deterministic rules.
	ModeMismatchOnly Mode = "mismatch-only"

	// ModeFull adds GL reconciliation and the executive summary (Outputs B and C).
	ModeFull Mode = "full"
)

// ParseMode maps a user-supplied mode name onto a Mode. Empty selects ModeClassification.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "":
		return ModeClassification, true
	case ModeClassification, ModeMismatchOnly, ModeFull:
		return Mode(s), true
	}
	return "", false
}

// Stage names used for recorded model outputs.
const (
	StageClassification = "classification"
	StageReconciliation = "reconciliation"
)

// DefaultModelTimeout bounds a single model call.
const DefaultModelTimeout = 5 * time.Minute
