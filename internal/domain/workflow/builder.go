package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides at fire time whether a guarded rule applies
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects transition rules and stamps out machines
type StateMachineBuilder interface {
	Configure(state State) StateConfiguration
	Build(initialState State) StateMachine
}

// StateConfiguration adds rules leaving one state
type StateConfiguration interface {
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf adds a guarded rule. Rules for the same trigger are tried in
	// registration order and the first whose guard passes wins.
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

// rule is one edge of the lifecycle graph
type rule struct {
	from    State
	trigger Trigger
	to      State
	guard   GuardFunc
}

type ruleSet []rule

func (rs ruleSet) matching(from State, trigger Trigger) []rule {
	var out []rule
	for _, r := range rs {
		if r.from == from && r.trigger == trigger {
			out = append(out, r)
		}
	}
	return out
}

type builder struct {
	rules ruleSet
}

type fromState struct {
	b    *builder
	from State
}

type machine struct {
	current State
	rules   ruleSet
}

// NewBuilder creates an empty builder
func NewBuilder() StateMachineBuilder {
	return &builder{}
}

// Configure panics on unknown states; rule tables are static program data.
func (b *builder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	return &fromState{b: b, from: state}
}

// Build returns a machine at initialState. Later Configure calls do not affect it.
func (b *builder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}
	return &machine{
		current: initialState,
		rules:   append(ruleSet(nil), b.rules...),
	}
}

func (c *fromState) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *fromState) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	if !CanTransition(c.from, toState) {
		panic(fmt.Sprintf("transition %s -> %s is not in the transition table", c.from, toState))
	}
	c.b.rules = append(c.b.rules, rule{from: c.from, trigger: trigger, to: toState, guard: guard})
	return c
}

func (m *machine) State() State {
	return m.current
}

// CanFire ignores guards since they need a context to evaluate
func (m *machine) CanFire(trigger Trigger) bool {
	return len(m.rules.matching(m.current, trigger)) > 0
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	candidates := m.rules.matching(m.current, trigger)
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, r := range candidates {
		if r.guard == nil || r.guard(ctx) {
			m.current = r.to
			return nil
		}
	}
	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns the distinct triggers leaving the current state, sorted
func (m *machine) PermittedTriggers() []Trigger {
	seen := make(map[Trigger]bool)
	triggers := []Trigger{}
	for _, r := range m.rules {
		if r.from == m.current && !seen[r.trigger] {
			seen[r.trigger] = true
			triggers = append(triggers, r.trigger)
		}
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
