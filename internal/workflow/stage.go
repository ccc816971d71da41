package workflow

import "github.com/JaimeStill/ledger/internal/anomaly"

// Stage names a node in the document workflow. A checkpoint's current stage
// is the stage the next run executes.
type Stage string

const (
	StageExtracting  Stage = "extracting"
	StageCritiquing  Stage = "critiquing"
	StageValidating  Stage = "validating"
	StageAuditing    Stage = "auditing"
	StageStoring     Stage = "storing"
	StageFinalized   Stage = "finalized"
	StageQuarantined Stage = "quarantined"
	StageFailed      Stage = "failed"
)

// Terminal reports whether a run stops at s.
func (s Stage) Terminal() bool {
	switch s {
	case StageFinalized, StageQuarantined, StageFailed:
		return true
	}
	return false
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageExtracting, StageCritiquing, StageValidating, StageAuditing, StageStoring:
		return true
	}
	return s.Terminal()
}

// next returns the stage entered when a reviewer approves a document that
// was quarantined at s.
func (s Stage) next() (Stage, bool) {
	switch s {
	case StageExtracting:
		return StageValidating, true
	case StageValidating:
		return StageAuditing, true
	case StageAuditing:
		return StageStoring, true
	}
	return "", false
}

// requiresData reports whether entering s needs structured data.
func (s Stage) requiresData() bool {
	return s == StageAuditing || s == StageStoring || s == StageFinalized
}

// Status is the externally visible state of a document's workflow.
type Status string

const (
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusQuarantined Status = "quarantined"
	StatusFailed      Status = "failed"
)

// Outcome is the result a stage reports to the dispatcher.
type Outcome string

const (
	OutcomeComplete    Outcome = "complete"
	OutcomeRetryable   Outcome = "retryable"
	OutcomeFailed      Outcome = "failed"
	OutcomeLow         Outcome = Outcome(anomaly.LevelLow)
	OutcomeMedium      Outcome = Outcome(anomaly.LevelMedium)
	OutcomeHigh        Outcome = Outcome(anomaly.LevelHigh)
	OutcomeCritical    Outcome = Outcome(anomaly.LevelCritical)
	OutcomePass        Outcome = "pass"
	OutcomeViolation   Outcome = "violation"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeStored      Outcome = "stored"
	OutcomeExhausted   Outcome = "exhausted"
)

// PauseReason explains why a document was quarantined.
type PauseReason string

const (
	PauseExtractionExhausted   PauseReason = "extraction_exhausted"
	PauseValidationRisk        PauseReason = "validation_risk"
	PauseComplianceViolation   PauseReason = "compliance_violation"
	PauseComplianceUnavailable PauseReason = "compliance_unavailable"
)
