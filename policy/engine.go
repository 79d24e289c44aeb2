// Package policy evaluates chat access rules with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the policy.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Input is the document the policy is evaluated against.
type Input struct {
	Action       string `json:"action"`
	Role         string `json:"role"`
	PeerRole     string `json:"peer_role,omitempty"`
	RequiredRole string `json:"required_role"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.chat_policy.decision"),
		rego.Module("chat_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate runs the policy for input.
// Returns: decision (allow, deny), reason (optional), error
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	// No result means no rule matched and the policy has no default.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionDeny, "no decision", nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return val, "", nil
	case map[string]interface{}:
		decision, _ := val["decision"].(string)
		reason, _ := val["reason"].(string)
		if decision == "" {
			return DecisionDeny, "missing decision", nil
		}
		return decision, reason, nil
	default:
		return DecisionDeny, "unexpected return type", nil
	}
}

// Allowed is a shortcut for callers that only need a yes/no answer.
func (e *Engine) Allowed(ctx context.Context, input Input) (bool, error) {
	decision, _, err := e.Evaluate(ctx, input)
	if err != nil {
		return false, err
	}
	return decision == DecisionAllow, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package chat_policy

default decision = "deny"

# Any chat action needs the privileged role.
decision = "allow" {
	input.action != "create_chat"
	input.role == input.required_role
}

# Both ends of a new conversation must hold the privileged role.
decision = "allow" {
	input.action == "create_chat"
	input.role == input.required_role
	input.peer_role == input.required_role
}
`
