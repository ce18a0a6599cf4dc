package core

import (
	"context"
	"fmt"

	"recordstore/pkg/domain"
)

// LifecycleTransitionRule blocks illegal state transitions on stateful entities.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

type lifecycleMachine struct {
	machine   domain.StateMachine
	extractor func(payload any) (id uint64, state string, ok bool)
}

var lifecycleMachines = map[domain.EntityType]lifecycleMachine{
	domain.EntityNFT: {
		machine: domain.NFTLifecycle,
		extractor: func(payload any) (uint64, string, bool) {
			nft, ok := payload.(domain.NFT)
			if !ok {
				return 0, "", false
			}
			return nft.ID, string(nft.Status), true
		},
	},
	domain.EntitySwapRequest: {
		machine: domain.SwapLifecycle,
		extractor: func(payload any) (uint64, string, bool) {
			req, ok := payload.(domain.SwapRequest)
			if !ok {
				return 0, "", false
			}
			return req.ID, string(req.Status), true
		},
	},
}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (r lifecycleTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		lm, ok := lifecycleMachines[change.Entity]
		if !ok {
			continue
		}
		m := lm.machine
		afterID, afterState, ok := lm.extractor(change.After)
		if !ok {
			continue
		}
		if !m.Valid(afterState) {
			res.Violations = append(res.Violations, r.block(m, afterID,
				fmt.Sprintf("%s %d is set to invalid state %s", m.Label, afterID, afterState)))
			continue
		}

		_, beforeState, ok := lm.extractor(change.Before)
		if !ok {
			if change.Action == domain.ActionCreate && afterState != m.Initial {
				res.Violations = append(res.Violations, r.block(m, afterID,
					fmt.Sprintf("%s %d must start in state %s, not %s", m.Label, afterID, m.Initial, afterState)))
			}
			continue
		}
		if m.CanTransition(beforeState, afterState) {
			continue
		}
		msg := fmt.Sprintf("cannot move %s %d from %s to %s", m.Label, afterID, beforeState, afterState)
		if m.Terminal(beforeState) {
			msg = fmt.Sprintf("cannot move %s %d from terminal state %s to %s", m.Label, afterID, beforeState, afterState)
		}
		res.Violations = append(res.Violations, r.block(m, afterID, msg))
	}
	return res, nil
}

func (lifecycleTransitionRule) block(m domain.StateMachine, id uint64, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "lifecycle_transition",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   m.Entity,
		EntityID: id,
	}
}
