package operations

import (
	"fmt"
	"slices"

	"github.com/yami-59/network-ops-demo/internal/model"
)

// TransitionPolicy decides which target statuses a transition may request
// from a given current status.
type TransitionPolicy interface {
	// Allowed lists the legal targets from current.
	Allowed(current model.Status) []model.Status
	// Name identifies the policy in logs.
	Name() string
}

// PermissivePolicy accepts any of the four statuses from any status,
// including re-submitting the current one.
type PermissivePolicy struct{}

func (PermissivePolicy) Allowed(model.Status) []model.Status {
	return slices.Clone(model.Statuses)
}

func (PermissivePolicy) Name() string { return "permissive" }

// StrictPolicy only allows the forward lifecycle plus the retry of a
// failed operation. EXECUTED is final.
type StrictPolicy struct{}

var strictTransitions = map[model.Status][]model.Status{
	model.StatusPending:  {model.StatusPlanned},
	model.StatusPlanned:  {model.StatusExecuted, model.StatusFailed},
	model.StatusFailed:   {model.StatusPlanned},
	model.StatusExecuted: {},
}

func (StrictPolicy) Allowed(current model.Status) []model.Status {
	return slices.Clone(strictTransitions[current])
}

func (StrictPolicy) Name() string { return "strict" }

// checkPolicy returns a ValidationError on to_status when p forbids the move.
func checkPolicy(p TransitionPolicy, from, to model.Status) error {
	allowed := p.Allowed(from)
	if slices.Contains(allowed, to) {
		return nil
	}
	if len(allowed) == 0 {
		return model.NewValidationError("to_status", fmt.Sprintf("%s is final, no transition allowed", from))
	}
	return model.NewValidationError("to_status", fmt.Sprintf("cannot move from %s to %s (allowed: %v)", from, to, allowed))
}

// SuggestNext returns the status a caller is offered by default after
// current: the next forward step, or the current status once terminal.
func SuggestNext(current model.Status) model.Status {
	switch current {
	case model.StatusPending:
		return model.StatusPlanned
	case model.StatusPlanned:
		return model.StatusExecuted
	case model.StatusExecuted:
		return model.StatusExecuted
	case model.StatusFailed:
		return model.StatusFailed
	default:
		return model.StatusPending
	}
}

// Rules describes p for every status, in lifecycle order.
func Rules(p TransitionPolicy) []model.TransitionRule {
	rules := make([]model.TransitionRule, 0, len(model.Statuses))
	for _, from := range model.Statuses {
		allowed := p.Allowed(from)
		if allowed == nil {
			allowed = []model.Status{}
		}
		suggested := SuggestNext(from)
		if !slices.Contains(allowed, suggested) {
			suggested = ""
			if len(allowed) > 0 {
				suggested = allowed[0]
			}
		}
		rules = append(rules, model.TransitionRule{From: from, Allowed: allowed, Suggested: suggested})
	}
	return rules
}
