package workflow

import "fmt"

// Transition is the dispatcher's decision for a stage outcome.
type Transition struct {
	Next  Stage
	Pause PauseReason
}

// Status returns the workflow status implied by entering t.Next.
func (t Transition) Status() Status {
	switch t.Next {
	case StageFinalized:
		return StatusCompleted
	case StageQuarantined:
		return StatusQuarantined
	case StageFailed:
		return StatusFailed
	default:
		return StatusProcessing
	}
}

type budgetRule uint8

const (
	anyBudget budgetRule = iota
	budgetLeft
	budgetSpent
)

type route struct {
	stage   Stage
	outcome Outcome
	budget  budgetRule
}

var (
	toCritic     = Transition{Next: StageCritiquing}
	toFailed     = Transition{Next: StageFailed}
	toValidation = Transition{Next: StageQuarantined, Pause: PauseValidationRisk}
	toExhausted  = Transition{Next: StageQuarantined, Pause: PauseExtractionExhausted}
)

var routes = map[route]Transition{
	{StageExtracting, OutcomeComplete, anyBudget}:    {Next: StageValidating},
	{StageExtracting, OutcomeRetryable, budgetLeft}:  toCritic,
	{StageExtracting, OutcomeRetryable, budgetSpent}: toExhausted,
	{StageExtracting, OutcomeFailed, budgetLeft}:     toCritic,
	{StageExtracting, OutcomeFailed, budgetSpent}:    toExhausted,

	{StageCritiquing, OutcomeComplete, anyBudget}:  {Next: StageExtracting},
	{StageCritiquing, OutcomeExhausted, anyBudget}: toFailed,

	{StageValidating, OutcomeLow, anyBudget}:      {Next: StageAuditing},
	{StageValidating, OutcomeMedium, budgetLeft}:  toCritic,
	{StageValidating, OutcomeMedium, budgetSpent}: toValidation,
	{StageValidating, OutcomeHigh, anyBudget}:     toValidation,
	{StageValidating, OutcomeCritical, anyBudget}: toValidation,

	{StageAuditing, OutcomePass, anyBudget}:        {Next: StageStoring},
	{StageAuditing, OutcomeViolation, anyBudget}:   {Next: StageQuarantined, Pause: PauseComplianceViolation},
	{StageAuditing, OutcomeUnavailable, anyBudget}: {Next: StageQuarantined, Pause: PauseComplianceUnavailable},

	{StageStoring, OutcomeStored, anyBudget}: {Next: StageFinalized},
	{StageStoring, OutcomeFailed, anyBudget}: toFailed,
}

// Dispatch routes an outcome at stage to the next stage. Routes that depend
// on the retry budget are matched before budget-independent ones.
func Dispatch(stage Stage, outcome Outcome, budget RetryBudget) (Transition, error) {
	rule := budgetLeft
	if budget.Exhausted() {
		rule = budgetSpent
	}

	if t, ok := routes[route{stage, outcome, rule}]; ok {
		return t, nil
	}
	if t, ok := routes[route{stage, outcome, anyBudget}]; ok {
		return t, nil
	}

	return Transition{}, fmt.Errorf("%w: %s/%s", ErrNoRoute, stage, outcome)
}
