package workflow

// State represents a document status in the approval lifecycle
type State string

const (
	StateDraft                  State = "draft"
	StatePendingManagerApproval State = "pending_manager_approval"
	StatePendingFinanceApproval State = "pending_finance_approval"
	StateApproved               State = "approved"
	StateRejected               State = "rejected"
)

// transitions is the legal transition graph. Every other component
// consults it through CanTransition.
var transitions = map[State][]State{
	StateDraft:                  {StatePendingManagerApproval},
	StatePendingManagerApproval: {StateApproved, StatePendingFinanceApproval, StateRejected},
	StatePendingFinanceApproval: {StateApproved, StateRejected},
	StateApproved:               {},
	StateRejected:               {},
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

var labels = map[State]string{
	StateDraft:                  "Draft",
	StatePendingManagerApproval: "Awaiting manager approval",
	StatePendingFinanceApproval: "Awaiting finance approval",
	StateApproved:               "Approved",
	StateRejected:               "Rejected",
}

var badgeColors = map[State]string{
	StateDraft:                  "gray",
	StatePendingManagerApproval: "yellow",
	StatePendingFinanceApproval: "blue",
	StateApproved:               "green",
	StateRejected:               "red",
}

// AllStates returns every status in lifecycle order
func AllStates() []State {
	return []State{
		StateDraft,
		StatePendingManagerApproval,
		StatePendingFinanceApproval,
		StateApproved,
		StateRejected,
	}
}

// ParseState converts a raw value into a State
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.IsValid() {
		return "", ErrInvalidState
	}
	return s, nil
}

// CanTransition reports whether moving from one status to another is legal
func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns a copy of the targets reachable from s
func AllowedTransitions(s State) []State {
	return append([]State{}, transitions[s]...)
}

// IsValid returns true if the state is a recognised document status
func (s State) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsEditable is true only for drafts
func (s State) IsEditable() bool {
	return s == StateDraft
}

// IsPending is true while an approver has to act
func (s State) IsPending() bool {
	return s == StatePendingManagerApproval || s == StatePendingFinanceApproval
}

// IsFinal returns true for terminal states (no further transitions allowed)
func (s State) IsFinal() bool {
	return terminalStates[s]
}

// Label returns the human readable name
func (s State) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// BadgeColor returns the display color used by front ends
func (s State) BadgeColor() string {
	if c, ok := badgeColors[s]; ok {
		return c
	}
	return "gray"
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
