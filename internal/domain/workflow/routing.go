package workflow

import (
	"context"
	"fmt"
)

// RoutingTable holds one Definition per domain and computes next statuses
type RoutingTable struct {
	definitions map[Domain]*Definition
}

// NewRoutingTable validates the definitions and indexes them by domain
func NewRoutingTable(defs ...*Definition) (*RoutingTable, error) {
	table := &RoutingTable{definitions: make(map[Domain]*Definition, len(defs))}
	for _, def := range defs {
		if def == nil {
			continue
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := table.definitions[def.Domain]; dup {
			return nil, fmt.Errorf("duplicate definition for domain %s", def.Domain)
		}
		table.definitions[def.Domain] = def
	}
	return table, nil
}

// Definition returns the definition registered for a domain
func (t *RoutingTable) Definition(domain Domain) (*Definition, bool) {
	def, ok := t.definitions[domain]
	return def, ok
}

// Domains returns the registered domains in canonical order
func (t *RoutingTable) Domains() []Domain {
	out := make([]Domain, 0, len(t.definitions))
	for _, d := range AllDomains() {
		if _, ok := t.definitions[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// NextStatus returns the status an approve moves a request to.
// From DRAFT or a pending status it walks the remaining pending steps, bypassing those whose
// conditions do not apply, and falls through to the fully approved status. From a processing
// status it returns the next processing status or the final one.
func (t *RoutingTable) NextStatus(domain Domain, current Status, attrs map[string]any) (Status, error) {
	def, ok := t.definitions[domain]
	if !ok {
		return "", Validation("domain", fmt.Sprintf("unknown domain %q", domain))
	}

	switch def.Kind(current) {
	case KindDraft:
		return def.walkPending(0, attrs), nil
	case KindPending:
		return def.walkPending(def.pendingIndex(current)+1, attrs), nil
	case KindProcessing:
		next := def.processingIndex(current) + 1
		if next < len(def.Processing) {
			return def.Processing[next].Status, nil
		}
		return def.Final, nil
	case KindUnknown:
		return "", InvalidTransition("status %s does not belong to domain %s", current, domain)
	default:
		return "", InvalidTransition("no approval step follows status %s", current)
	}
}

// FirstStatus returns the status a submitted request enters
func (t *RoutingTable) FirstStatus(domain Domain, attrs map[string]any) (Status, error) {
	return t.NextStatus(domain, StatusDraft, attrs)
}

func (d *Definition) walkPending(from int, attrs map[string]any) Status {
	for i := from; i < len(d.Pending); i++ {
		if d.Pending[i].Applies(attrs) {
			return d.Pending[i].Status
		}
	}
	return d.FullyApproved()
}

// BuildStateMachine configures a state machine for one request of the domain, positioned at
// current. Approve transitions are guarded by the same step conditions NextStatus evaluates.
func (t *RoutingTable) BuildStateMachine(domain Domain, current Status, attrs map[string]any) (StateMachine, error) {
	def, ok := t.definitions[domain]
	if !ok {
		return nil, Validation("domain", fmt.Sprintf("unknown domain %q", domain))
	}
	if !def.Has(current) {
		return nil, InvalidTransition("status %s does not belong to domain %s", current, domain)
	}

	builder := NewBuilder(WithStatusSet(def.Has))

	permitApprovals := func(cfg StateConfiguration, from int) {
		for i := from; i < len(def.Pending); i++ {
			step := def.Pending[i]
			cfg.PermitIf(ActionApprove, step.Status, func(context.Context) bool {
				return step.Applies(attrs)
			})
		}
		cfg.Permit(ActionApprove, def.FullyApproved())
	}

	draft := builder.Configure(StatusDraft)
	draft.Permit(ActionCancel, StatusCancelled)

	for i, step := range def.Pending {
		cfg := builder.Configure(step.Status)
		permitApprovals(cfg, i+1)
		cfg.Permit(ActionReject, StatusRejected).
			Permit(ActionCancel, StatusCancelled)
	}

	for i, step := range def.Processing {
		next := def.Final
		if i+1 < len(def.Processing) {
			next = def.Processing[i+1].Status
		}
		builder.Configure(step.Status).
			Permit(ActionApprove, next).
			Permit(ActionReject, StatusRejected)
	}

	// Final, REJECTED and CANCELLED have no outgoing transitions

	return builder.Build(current), nil
}
