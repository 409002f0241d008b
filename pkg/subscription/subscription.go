// Package subscription defines the boundary to the billing collaborator
// that resolves a user's subscription plan.
package subscription

import (
	"context"
	"errors"

	"github.com/dealrelay/dealrelay/pkg/models"
)

// ErrPlanNotFound indicates the billing collaborator has no plan for the
// user.
var ErrPlanNotFound = errors.New("plan not found for user")

// Resolver resolves the subscription plan for a user. Implementations wrap
// the external billing service; the core only reads.
type Resolver interface {
	GetPlan(ctx context.Context, userID string) (*models.Plan, error)
}

// Limits maps each plan to its maximum number of simultaneously active
// workflows. A negative value means unbounded.
type Limits map[models.PlanName]int

// DefaultLimits are the per-plan active-workflow ceilings applied when no
// explicit limits are configured.
func DefaultLimits() Limits {
	return Limits{
		models.PlanTrial:        1,
		models.PlanStarter:      3,
		models.PlanProfessional: 10,
		models.PlanEnterprise:   -1,
	}
}

// StaticResolver serves plans from a fixed map, with an optional fallback
// plan for unknown users. Used for wiring tests and single-tenant installs.
type StaticResolver struct {
	plans       map[string]*models.Plan
	defaultPlan *models.Plan
}

// NewStaticResolver creates a resolver over the given user->plan map.
func NewStaticResolver(plans map[string]*models.Plan, defaultPlan *models.Plan) *StaticResolver {
	return &StaticResolver{plans: plans, defaultPlan: defaultPlan}
}

// GetPlan returns the user's plan, the default plan, or ErrPlanNotFound.
func (r *StaticResolver) GetPlan(_ context.Context, userID string) (*models.Plan, error) {
	if plan, ok := r.plans[userID]; ok {
		return plan, nil
	}

	if r.defaultPlan != nil {
		return r.defaultPlan, nil
	}

	return nil, ErrPlanNotFound
}

// PlanFor builds a Plan value for the given plan name using the provided
// limits table. Plans absent from the table carry no ceiling of their own.
func PlanFor(name models.PlanName, limits Limits) *models.Plan {
	plan := &models.Plan{Name: name}

	if max, ok := limits[name]; ok {
		plan.MaxActiveWorkflows = &max
	}

	return plan
}
