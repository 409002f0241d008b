// Package gate enforces subscription-tier entitlements for the workflow
// marketplace: which catalog entries a user may import and how many
// workflows a plan may keep active. Denials are values, not errors; callers
// branch on the decision to produce upgrade prompts.
package gate

import (
	"context"
	"fmt"

	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/subscription"
)

// DenialReason is the machine-readable cause of a denied decision.
type DenialReason string

const (
	ReasonTierTooLow   DenialReason = "tier_too_low"
	ReasonLimitReached DenialReason = "limit_reached"
)

// Decision is the outcome of a gate check. When Allowed is false, Reason
// and Message describe the denial for the caller's upgrade prompt.
type Decision struct {
	Allowed bool         `json:"allowed"`
	Reason  DenialReason `json:"reason,omitempty"`
	Message string       `json:"message,omitempty"`
}

func allowed() Decision {
	return Decision{Allowed: true}
}

func denied(reason DenialReason, message string) Decision {
	return Decision{Allowed: false, Reason: reason, Message: message}
}

// Gate resolves entitlement decisions against the billing collaborator.
type Gate struct {
	plans  subscription.Resolver
	limits subscription.Limits
}

// New creates a gate. A nil limits table falls back to the defaults.
func New(plans subscription.Resolver, limits subscription.Limits) *Gate {
	if limits == nil {
		limits = subscription.DefaultLimits()
	}

	return &Gate{plans: plans, limits: limits}
}

// CanImport decides whether the user's plan ranks high enough to import the
// catalog entry. Count limiting is not checked here; imports land inactive
// and the limit applies at activation.
func (g *Gate) CanImport(ctx context.Context, userID string, entry *models.CatalogEntry) (Decision, error) {
	plan, err := g.plans.GetPlan(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve plan for user %s: %w", userID, err)
	}

	if !plan.Name.Allows(entry.RequiredTier) {
		return denied(ReasonTierTooLow, fmt.Sprintf(
			"%q requires the %s tier; your %s plan does not include it. Upgrade to import this workflow.",
			entry.Name, entry.RequiredTier, plan.Name,
		)), nil
	}

	return allowed(), nil
}

// CanActivate decides whether activating one more workflow keeps the user
// within the plan's active-workflow ceiling. currentActive is the user's
// number of currently active workflows before the activation.
func (g *Gate) CanActivate(ctx context.Context, userID string, currentActive int) (Decision, error) {
	plan, err := g.plans.GetPlan(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve plan for user %s: %w", userID, err)
	}

	max := g.maxActive(plan)
	if max < 0 {
		return allowed(), nil
	}

	if currentActive >= max {
		return denied(ReasonLimitReached, fmt.Sprintf(
			"your %s plan allows %d active workflows and you already have %d. Deactivate one or upgrade your plan.",
			plan.Name, max, currentActive,
		)), nil
	}

	return allowed(), nil
}

// maxActive prefers the limit carried on the resolved plan, falling back to
// the configured table. A plan-carried zero is a real zero-workflow ceiling.
func (g *Gate) maxActive(plan *models.Plan) int {
	if plan.MaxActiveWorkflows != nil {
		return *plan.MaxActiveWorkflows
	}

	if max, ok := g.limits[plan.Name]; ok {
		return max
	}

	return 0
}
