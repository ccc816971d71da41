package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JaimeStill/ledger/internal/anomaly"
	"github.com/JaimeStill/ledger/internal/checkpoints"
	"github.com/JaimeStill/ledger/internal/documents"
)

// StateVersion is the schema version written into every checkpoint blob.
const StateVersion = 1

// Failure is one entry in a document's append-only error history.
type Failure struct {
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// State is the unit of truth carried through every stage and persisted at
// every checkpoint.
type State struct {
	Version      int            `json:"version"`
	DocumentID   string         `json:"document_id"`
	OwnerID      string         `json:"owner_id"`
	DocumentType documents.Type `json:"document_type"`
	RawText      string         `json:"raw_text"`

	StructuredData       *documents.Invoice `json:"structured_data"`
	ExtractionConfidence float64            `json:"extraction_confidence"`
	ValidationAnomalies  []anomaly.Anomaly  `json:"validation_anomalies"`
	ComplianceAnomalies  []anomaly.Anomaly  `json:"compliance_anomalies"`
	RiskLevel            anomaly.Level      `json:"risk_level,omitempty"`
	CriticFeedback       string             `json:"critic_feedback,omitempty"`
	GraphID              string             `json:"graph_id,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
	Attempt    int `json:"attempt"`

	Status          Status      `json:"status"`
	Paused          bool        `json:"paused"`
	PauseReason     PauseReason `json:"pause_reason,omitempty"`
	CurrentStage    Stage       `json:"current_stage"`
	QuarantinedFrom Stage       `json:"quarantined_from,omitempty"`

	ErrorHistory []Failure `json:"error_history"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newState(cmd StartCommand, maxRetries int, now time.Time) *State {
	return &State{
		Version:      StateVersion,
		DocumentID:   cmd.DocumentID,
		OwnerID:      cmd.OwnerID,
		DocumentType: cmd.DocumentType,
		RawText:      cmd.RawText,
		MaxRetries:   maxRetries,
		Status:       StatusProcessing,
		CurrentStage: StageExtracting,
		ErrorHistory: []Failure{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Budget returns the document's retry budget.
func (s *State) Budget() RetryBudget {
	return RetryBudget{Used: s.RetryCount, Max: s.MaxRetries}
}

// Anomalies returns validation and compliance findings of the current attempt.
func (s *State) Anomalies() []anomaly.Anomaly {
	out := make([]anomaly.Anomaly, 0, len(s.ValidationAnomalies)+len(s.ComplianceAnomalies))
	out = append(out, s.ValidationAnomalies...)
	return append(out, s.ComplianceAnomalies...)
}

// Validate checks the invariants every checkpoint must satisfy.
func (s *State) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
	}

	switch {
	case s.Version != StateVersion:
		return invalid("version %d, want %d", s.Version, StateVersion)
	case s.DocumentID == "":
		return invalid("document_id required")
	case s.OwnerID == "":
		return invalid("owner_id required")
	case !s.DocumentType.Valid():
		return invalid("document_type %q", s.DocumentType)
	case !s.CurrentStage.Valid():
		return invalid("current_stage %q", s.CurrentStage)
	case s.MaxRetries < 0 || s.RetryCount < 0:
		return invalid("retry budget must be non-negative")
	case s.RetryCount > s.MaxRetries:
		return invalid("retry_count %d exceeds max_retries %d", s.RetryCount, s.MaxRetries)
	case s.RiskLevel != "" && !s.RiskLevel.Valid():
		return invalid("risk_level %q", s.RiskLevel)
	case s.Paused != (s.Status == StatusQuarantined):
		return invalid("paused=%t with status %s", s.Paused, s.Status)
	case s.Paused && s.PauseReason == "":
		return invalid("pause_reason required while paused")
	case s.CurrentStage.requiresData() && s.StructuredData == nil:
		return invalid("stage %s requires structured_data", s.CurrentStage)
	}

	var want Stage
	switch s.Status {
	case StatusProcessing:
		if s.CurrentStage.Terminal() {
			return invalid("processing at terminal stage %s", s.CurrentStage)
		}
		return nil
	case StatusCompleted:
		want = StageFinalized
	case StatusQuarantined:
		want = StageQuarantined
	case StatusFailed:
		want = StageFailed
	default:
		return invalid("status %q", s.Status)
	}

	if s.CurrentStage != want {
		return invalid("status %s at stage %s", s.Status, s.CurrentStage)
	}
	return nil
}

func (s *State) record(stage Stage, message string, at time.Time) {
	s.ErrorHistory = append(s.ErrorHistory, Failure{
		Stage:   stage,
		Message: message,
		At:      at,
	})
}

// supersede moves the current attempt's findings into the error history and
// clears them, starting a fresh attempt with an unset risk level.
func (s *State) supersede(stage Stage, at time.Time) {
	if found := s.Anomalies(); len(found) > 0 {
		s.record(stage, fmt.Sprintf(
			"attempt %d superseded with risk %s: %s",
			s.Attempt, s.RiskLevel, anomaly.MarshalList(found),
		), at)
	}
	s.ValidationAnomalies = nil
	s.ComplianceAnomalies = nil
	s.RiskLevel = ""
}

func (s *State) enter(t Transition, from Stage) {
	s.CurrentStage = t.Next
	s.Status = t.Status()
	s.Paused = t.Next == StageQuarantined
	s.PauseReason = t.Pause
	if s.Paused {
		s.QuarantinedFrom = from
	} else {
		s.QuarantinedFrom = ""
	}
}

func (s *State) fail(stage Stage, reason string, at time.Time) {
	s.record(stage, reason, at)
	s.enter(toFailed, stage)
}

func (s *State) checkpoint(seq int64) (checkpoints.Checkpoint, error) {
	blob, err := json.Marshal(s)
	if err != nil {
		return checkpoints.Checkpoint{}, fmt.Errorf("%w: encode: %w", ErrInvalidState, err)
	}

	return checkpoints.Checkpoint{
		DocumentID:   s.DocumentID,
		Sequence:     seq,
		OwnerID:      s.OwnerID,
		DocumentType: string(s.DocumentType),
		Status:       string(s.Status),
		Paused:       s.Paused,
		PauseReason:  checkpoints.Nullable(string(s.PauseReason)),
		RiskLevel:    checkpoints.Nullable(string(s.RiskLevel)),
		RetryCount:   s.RetryCount,
		CurrentStage: string(s.CurrentStage),
		State:        blob,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}, nil
}

func decodeState(cp checkpoints.Checkpoint) (*State, error) {
	var s State
	if err := json.Unmarshal(cp.State, &s); err != nil {
		return nil, fmt.Errorf("%w: decode checkpoint %s/%d: %w", ErrInvalidState, cp.DocumentID, cp.Sequence, err)
	}
	if s.Version != StateVersion {
		return nil, fmt.Errorf("%w: checkpoint %s/%d has version %d", ErrInvalidState, cp.DocumentID, cp.Sequence, s.Version)
	}
	if s.ErrorHistory == nil {
		s.ErrorHistory = []Failure{}
	}
	return &s, nil
}
