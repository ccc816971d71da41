package workflow

import "fmt"

// RetryBudget bounds the critic loop for one document. Used never exceeds Max.
type RetryBudget struct {
	Used int `json:"used"`
	Max  int `json:"max"`
}

// Remaining returns how many critic passes are left.
func (b RetryBudget) Remaining() int {
	return max(b.Max-b.Used, 0)
}

// Exhausted reports whether no critic pass is left.
func (b RetryBudget) Exhausted() bool {
	return b.Used >= b.Max
}

// Consume spends one retry. It fails without changing the budget when the
// budget is already exhausted.
func (b RetryBudget) Consume() (RetryBudget, error) {
	if b.Exhausted() {
		return b, fmt.Errorf("%w: %d of %d used", ErrBudgetExhausted, b.Used, b.Max)
	}
	b.Used++
	return b, nil
}
