package models

// Tier ranks catalog entries by the minimum subscription level required to
// import them.
type Tier string

const (
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

var tierRank = map[Tier]int{
	TierStarter:      1,
	TierProfessional: 2,
	TierEnterprise:   3,
}

// Valid reports whether t is a known catalog tier.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]

	return ok
}

// Rank returns the ordinal position of t in the tier ordering.
func (t Tier) Rank() int {
	return tierRank[t]
}

// PlanName identifies a subscription plan, ordered by entitlement. The plan
// ordering and the catalog tier ordering share one scale: a plan may import
// a catalog entry iff its rank is at least the entry's required tier rank,
// so a trial plan imports nothing and a starter plan imports starter-tier
// entries only.
type PlanName string

const (
	PlanTrial        PlanName = "trial"
	PlanStarter      PlanName = "starter"
	PlanProfessional PlanName = "professional"
	PlanEnterprise   PlanName = "enterprise"
)

var planRank = map[PlanName]int{
	PlanTrial:        0,
	PlanStarter:      1,
	PlanProfessional: 2,
	PlanEnterprise:   3,
}

// Valid reports whether p is a known plan.
func (p PlanName) Valid() bool {
	_, ok := planRank[p]

	return ok
}

// Allows reports whether plan p may import catalog entries requiring tier t.
func (p PlanName) Allows(t Tier) bool {
	return planRank[p] >= tierRank[t]
}

// Plan is the subscription snapshot resolved for a user by the billing
// collaborator. A nil MaxActiveWorkflows defers to the gate's limits
// table; zero is a real ceiling and a negative value means unbounded.
type Plan struct {
	Name               PlanName `json:"name"`
	Tier               Tier     `json:"tier"`
	MaxActiveWorkflows *int     `json:"max_active_workflows,omitempty"`
}
