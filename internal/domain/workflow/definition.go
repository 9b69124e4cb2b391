package workflow

import (
	"context"

	"github.com/shopspring/decimal"
)

// FinanceThreshold is the amount at or above which a manager approval
// routes the document to finance instead of approving it outright.
var FinanceThreshold = decimal.NewFromInt(1000)

// RequiresFinanceApproval reports whether amount needs a second approval pass
func RequiresFinanceApproval(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(FinanceThreshold)
}

// NewDocumentMachine builds the document lifecycle machine positioned at current.
// needsFinance is evaluated when a manager approves.
func NewDocumentMachine(current State, needsFinance GuardFunc) StateMachine {
	if needsFinance == nil {
		needsFinance = func(context.Context) bool { return false }
	}
	direct := func(ctx context.Context) bool { return !needsFinance(ctx) }

	b := NewBuilder()

	b.Configure(StateDraft).
		Permit(TriggerSubmit, StatePendingManagerApproval)

	b.Configure(StatePendingManagerApproval).
		PermitIf(TriggerApproveByManager, StatePendingFinanceApproval, needsFinance).
		PermitIf(TriggerApproveByManager, StateApproved, direct).
		Permit(TriggerRejectByManager, StateRejected)

	b.Configure(StatePendingFinanceApproval).
		Permit(TriggerApproveByFinance, StateApproved).
		Permit(TriggerRejectByFinance, StateRejected)

	return b.Build(current)
}

// Resolve returns the state trigger would lead to from current without
// keeping the machine around.
func Resolve(ctx context.Context, current State, trigger Trigger, needsFinance GuardFunc) (State, error) {
	if !current.IsValid() {
		return "", ErrInvalidState
	}
	m := NewDocumentMachine(current, needsFinance)
	if err := m.Fire(ctx, trigger); err != nil {
		return "", err
	}
	return m.State(), nil
}
