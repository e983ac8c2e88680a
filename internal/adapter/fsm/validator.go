// Package fsm guards the change engine's step ordering with looplab/fsm.
package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/modgate/internal/domain"
)

// Compile-time check: Validator implements domain.StepValidator.
var _ domain.StepValidator = (*Validator)(nil)

// events is domain.StepTransitions in looplab/fsm EventDesc form. The
// change table is linear with exactly one destination per event, so rows
// group by event name alone: commit simply accumulates its three legal
// source steps (checked for a pure disable, initialized when no
// permissions module exists, broadcast otherwise).
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	var out []loopfsm.EventDesc
	index := make(map[domain.ChangeEvent]int)

	for _, tr := range domain.StepTransitions {
		if i, seen := index[tr.Event]; seen {
			out[i].Src = append(out[i].Src, string(tr.Src))
			continue
		}
		index[tr.Event] = len(out)
		out = append(out, loopfsm.EventDesc{
			Name: string(tr.Event),
			Src:  []string{string(tr.Src)},
			Dst:  string(tr.Dst),
		})
	}
	return out
}

// Validator enforces the change-step state machine.
type Validator struct{}

// New creates a new FSM-backed step validator.
func New() *Validator {
	return &Validator{}
}

// Apply checks that the event is legal from the current step and returns
// the step it leads to. looplab/fsm tracks state internally, so each call
// seeds a throwaway machine with the transition's current step. An illegal
// event is an internal invariant violation: the engine drives the machine,
// not the client.
func (v *Validator) Apply(ctx context.Context, current domain.ChangeStep, event domain.ChangeEvent) (domain.ChangeStep, error) {
	machine := loopfsm.NewFSM(string(current), events, nil)

	err := machine.Event(ctx, string(event))
	if err == nil {
		return domain.ChangeStep(machine.Current()), nil
	}

	var badEvent loopfsm.InvalidEventError
	var noChange loopfsm.NoTransitionError
	if errors.As(err, &badEvent) || errors.As(err, &noChange) {
		return "", domain.Internalf("change event %q is not valid from step %q", event, current)
	}
	return "", err
}
