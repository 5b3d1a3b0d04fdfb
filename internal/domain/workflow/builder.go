package workflow

import (
	"context"
	"fmt"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a state configuration for the given status
	Configure(status Status) StateConfiguration

	// Build creates a new state machine instance with the given initial status
	Build(initial Status) StateMachine
}

// StateConfiguration configures transitions for a specific status
type StateConfiguration interface {
	// Permit allows an action to transition to the target status
	Permit(action Action, to Status) StateConfiguration

	// PermitIf allows an action to transition to the target status if the guard passes.
	// Guards for the same action are evaluated in registration order; the first one that
	// passes wins.
	PermitIf(action Action, to Status, guard GuardFunc) StateConfiguration
}

// BuilderOption configures a StateMachineBuilder
type BuilderOption func(*stateMachineBuilder)

// WithStatusSet restricts the statuses the builder accepts
func WithStatusSet(valid func(Status) bool) BuilderOption {
	return func(b *stateMachineBuilder) {
		b.valid = valid
	}
}

type transition struct {
	to    Status
	guard GuardFunc
}

type stateConfig struct {
	from        Status
	valid       func(Status) bool
	order       []Action
	transitions map[Action][]transition
}

type stateMachineBuilder struct {
	valid          func(Status) bool
	configurations map[Status]*stateConfig
}

type stateMachine struct {
	current        Status
	configurations map[Status]*stateConfig
}

// NewBuilder creates a new state machine builder. Without options any known status is accepted.
func NewBuilder(opts ...BuilderOption) StateMachineBuilder {
	b := &stateMachineBuilder{
		valid:          Status.IsKnown,
		configurations: make(map[Status]*stateConfig),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Configure returns a state configuration for the given status
func (b *stateMachineBuilder) Configure(status Status) StateConfiguration {
	if !b.valid(status) {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &stateConfig{
			from:        status,
			valid:       b.valid,
			transitions: make(map[Action][]transition),
		}
		b.configurations[status] = config
	}

	return config
}

// Build creates a new state machine instance with the given initial status
func (b *stateMachineBuilder) Build(initial Status) StateMachine {
	if !b.valid(initial) {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}

	// Machines never share transition slices with the builder
	configs := make(map[Status]*stateConfig, len(b.configurations))
	for status, config := range b.configurations {
		transitions := make(map[Action][]transition, len(config.transitions))
		for action, ts := range config.transitions {
			transitions[action] = append([]transition{}, ts...)
		}
		configs[status] = &stateConfig{
			from:        status,
			order:       append([]Action{}, config.order...),
			transitions: transitions,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configs,
	}
}

// Permit allows an action to transition to the target status
func (c *stateConfig) Permit(action Action, to Status) StateConfiguration {
	return c.PermitIf(action, to, nil)
}

// PermitIf allows an action to transition to the target status if the guard condition passes
func (c *stateConfig) PermitIf(action Action, to Status, guard GuardFunc) StateConfiguration {
	if !c.valid(to) {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}

	if _, seen := c.transitions[action]; !seen {
		c.order = append(c.order, action)
	}
	c.transitions[action] = append(c.transitions[action], transition{
		to:    to,
		guard: guard,
	})

	return c
}

// State returns the current status
func (m *stateMachine) State() Status {
	return m.current
}

// CanFire returns true if the action has at least one configured transition from the
// current status. Guards are not evaluated.
func (m *stateMachine) CanFire(action Action) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}
	return len(config.transitions[action]) > 0
}

// Fire attempts to execute the action, transitioning to the new status if allowed
func (m *stateMachine) Fire(ctx context.Context, action Action) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return InvalidTransition("cannot %s a request in status %s", action, m.current)
	}

	transitions := config.transitions[action]
	if len(transitions) == 0 {
		return InvalidTransition("cannot %s a request in status %s", action, m.current)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from status %s", ErrGuardFailed, action, m.current)
}

// PermittedActions returns the actions configured for the current status in the order
// they were first configured
func (m *stateMachine) PermittedActions() []Action {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Action{}
	}
	return append([]Action{}, config.order...)
}
