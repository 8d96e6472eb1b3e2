// Package policy gates Director decisions through a rego policy, so
// experiment operators can add guardrails without touching pipeline code.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values a turn policy may return.
const (
	DecisionAllow = "allow"
	DecisionSkip  = "skip"
)

// Engine evaluates the turn policy.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the given rego policy content. The policy must define
// data.turn_policy.decision.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.turn_policy.decision"),
		rego.Module("turn_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Input is the decision context handed to the policy.
type Input struct {
	ActionType string `json:"action_type"`
	NextAgent  string `json:"next_agent"`
	TargetUser string `json:"target_user,omitempty"`
	HumanUser  string `json:"human_user"`
}

// Evaluate returns the policy decision for a Director decision: "allow" to
// proceed with the turn, "skip" to drop it.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy is expected to define a default.
		return DecisionAllow, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionAllow, nil
}

// DefaultPolicy allows everything except turns impersonating the human
// participant and agents mentioning themselves.
const DefaultPolicy = `
package turn_policy

default decision = "allow"

decision = "skip" {
	input.next_agent == input.human_user
}

decision = "skip" {
	input.action_type == "mention"
	input.target_user == input.next_agent
}
`
