package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Operator compares a request attribute against a condition operand
type Operator string

const (
	OpIn  Operator = "in"
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// Condition is a predicate over one request attribute.
// String operators (in, eq, ne) compare case-insensitively against Values;
// numeric operators compare against Number.
type Condition struct {
	Field  string   `json:"field" mapstructure:"field" yaml:"field" validate:"required"`
	Op     Operator `json:"op" mapstructure:"op" yaml:"op" validate:"required,oneof=in eq ne gt gte lt lte"`
	Values []string `json:"values,omitempty" mapstructure:"values" yaml:"values"`
	Number float64  `json:"number,omitempty" mapstructure:"number" yaml:"number"`
}

// Holds evaluates the condition against the attributes. A missing attribute never holds.
func (c Condition) Holds(attrs map[string]any) bool {
	raw, ok := attrs[c.Field]
	if !ok || raw == nil {
		return false
	}

	switch c.Op {
	case OpIn, OpEq:
		s := fmt.Sprint(raw)
		for _, v := range c.Values {
			if strings.EqualFold(s, v) {
				return true
			}
		}
		return false
	case OpNe:
		s := fmt.Sprint(raw)
		for _, v := range c.Values {
			if strings.EqualFold(s, v) {
				return false
			}
		}
		return true
	}

	n, ok := toFloat(raw)
	if !ok {
		return false
	}
	switch c.Op {
	case OpGt:
		return n > c.Number
	case OpGte:
		return n >= c.Number
	case OpLt:
		return n < c.Number
	case OpLte:
		return n <= c.Number
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Step is one checkpoint in a domain's ordered chain
type Step struct {
	Status Status `json:"status" mapstructure:"status" yaml:"status" validate:"required"`
	Role   string `json:"role" mapstructure:"role" yaml:"role" validate:"required"`

	// SkipUnless lists conditions of which at least one must hold for the step to apply.
	// An empty list means the step always applies.
	SkipUnless []Condition `json:"skip_unless,omitempty" mapstructure:"skip_unless" yaml:"skip_unless" validate:"dive"`
}

// Applies reports whether the step is required for a request with the given attributes
func (s Step) Applies(attrs map[string]any) bool {
	if len(s.SkipUnless) == 0 {
		return true
	}
	for _, c := range s.SkipUnless {
		if c.Holds(attrs) {
			return true
		}
	}
	return false
}

// Definition describes the closed status set and routing of one domain
type Definition struct {
	Domain     Domain `json:"domain" mapstructure:"domain" yaml:"domain" validate:"required"`
	Pending    []Step `json:"pending" mapstructure:"pending" yaml:"pending" validate:"required,min=1,dive"`
	Processing []Step `json:"processing,omitempty" mapstructure:"processing" yaml:"processing" validate:"dive"`
	Final      Status `json:"final" mapstructure:"final" yaml:"final" validate:"required"`
}

// Validate checks the definition is well formed: known domain, known and unique statuses
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid definition for %q: %w", d.Domain, err)
	}
	if !d.Domain.IsValid() {
		return fmt.Errorf("invalid definition: unknown domain %q", d.Domain)
	}

	seen := map[Status]bool{StatusDraft: true, StatusRejected: true, StatusCancelled: true}
	check := func(s Status) error {
		if !s.IsKnown() {
			return fmt.Errorf("invalid definition for %s: unknown status %q", d.Domain, s)
		}
		if seen[s] {
			return fmt.Errorf("invalid definition for %s: status %q used twice", d.Domain, s)
		}
		seen[s] = true
		return nil
	}
	for _, step := range d.Pending {
		if err := check(step.Status); err != nil {
			return err
		}
	}
	for _, step := range d.Processing {
		if err := check(step.Status); err != nil {
			return err
		}
	}
	return check(d.Final)
}

// Has reports whether the status belongs to this domain
func (d *Definition) Has(s Status) bool {
	return d.Kind(s) != KindUnknown
}

// Kind returns which partition of the domain's status set s belongs to
func (d *Definition) Kind(s Status) StatusKind {
	switch {
	case s == StatusDraft:
		return KindDraft
	case s == StatusRejected || s == StatusCancelled:
		return KindTerminal
	case s == d.Final:
		return KindCompleted
	case d.pendingIndex(s) >= 0:
		return KindPending
	case d.processingIndex(s) >= 0:
		return KindProcessing
	default:
		return KindUnknown
	}
}

// IsActionable reports whether approve and reject are legal from s
func (d *Definition) IsActionable(s Status) bool {
	k := d.Kind(s)
	return k == KindPending || k == KindProcessing
}

// IsCancellable reports whether cancel is legal from s
func (d *Definition) IsCancellable(s Status) bool {
	k := d.Kind(s)
	return k == KindDraft || k == KindPending
}

// IsFinished reports whether s admits no further approve or reject
func (d *Definition) IsFinished(s Status) bool {
	k := d.Kind(s)
	return k == KindCompleted || k == KindTerminal
}

// FullyApproved is the status reached when the pending chain is exhausted
func (d *Definition) FullyApproved() Status {
	if len(d.Processing) > 0 {
		return d.Processing[0].Status
	}
	return d.Final
}

// StepRole returns the role owning status s, Requestor for DRAFT, or "" when no one does
func (d *Definition) StepRole(s Status) string {
	if s == StatusDraft {
		return RoleRequestor
	}
	if i := d.pendingIndex(s); i >= 0 {
		return d.Pending[i].Role
	}
	if i := d.processingIndex(s); i >= 0 {
		return d.Processing[i].Role
	}
	return ""
}

// Statuses returns the domain's closed status set in lifecycle order
func (d *Definition) Statuses() []Status {
	out := []Status{StatusDraft}
	for _, step := range d.Pending {
		out = append(out, step.Status)
	}
	for _, step := range d.Processing {
		out = append(out, step.Status)
	}
	return append(out, d.Final, StatusRejected, StatusCancelled)
}

func (d *Definition) pendingIndex(s Status) int {
	for i, step := range d.Pending {
		if step.Status == s {
			return i
		}
	}
	return -1
}

func (d *Definition) processingIndex(s Status) int {
	for i, step := range d.Processing {
		if step.Status == s {
			return i
		}
	}
	return -1
}
