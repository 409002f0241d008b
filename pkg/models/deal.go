// Package models defines the core domain models for CRM deal automation.
package models

import "time"

// Stage represents the sales-funnel position of a deal.
type Stage string

const (
	StageLead        Stage = "lead"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageWon         Stage = "won"  // Terminal
	StageLost        Stage = "lost" // Terminal
)

// stageDefaults maps each stage to the probability applied when a stage
// change does not carry an explicit probability.
var stageDefaults = map[Stage]int{
	StageLead:        10,
	StageQualified:   25,
	StageProposal:    50,
	StageNegotiation: 75,
	StageWon:         100,
	StageLost:        0,
}

// Valid reports whether s is one of the known funnel stages.
func (s Stage) Valid() bool {
	_, ok := stageDefaults[s]

	return ok
}

// Terminal reports whether s is an absorbing close stage.
func (s Stage) Terminal() bool {
	return s == StageWon || s == StageLost
}

// DefaultProbability returns the probability assigned to a deal entering
// stage s without an explicit caller-supplied probability.
func DefaultProbability(s Stage) int {
	return stageDefaults[s]
}

// Stages lists the legal stage values in funnel order.
func Stages() []Stage {
	return []Stage{StageLead, StageQualified, StageProposal, StageNegotiation, StageWon, StageLost}
}

// Deal represents a CRM deal record owned by a single user.
type Deal struct {
	ID                 string          `json:"id"`
	OwnerID            string          `json:"owner_id"            validate:"required"`
	ContactID          string          `json:"contact_id,omitempty"`
	Title              string          `json:"title"               validate:"required,min=1"`
	Value              float64         `json:"value"               validate:"min=0"`
	Currency           string          `json:"currency"`
	Stage              Stage           `json:"stage"`
	Probability        int             `json:"probability"         validate:"min=0,max=100"`
	ExpectedCloseDate  *time.Time      `json:"expected_close_date,omitempty"`
	ActualCloseDate    *time.Time      `json:"actual_close_date,omitempty"`
	TriggeredWorkflows []TriggerRecord `json:"triggered_workflows,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// WeightedValue is the probability-weighted deal value. Derived, never stored.
func (d *Deal) WeightedValue() float64 {
	return d.Value * float64(d.Probability) / 100
}

// Clone returns a deep copy of the deal. The state machine operates on
// copies so a rejected update never mutates the caller's snapshot.
func (d *Deal) Clone() *Deal {
	clone := *d

	if d.ExpectedCloseDate != nil {
		t := *d.ExpectedCloseDate
		clone.ExpectedCloseDate = &t
	}

	if d.ActualCloseDate != nil {
		t := *d.ActualCloseDate
		clone.ActualCloseDate = &t
	}

	if d.TriggeredWorkflows != nil {
		clone.TriggeredWorkflows = make([]TriggerRecord, len(d.TriggeredWorkflows))
		copy(clone.TriggeredWorkflows, d.TriggeredWorkflows)
	}

	return &clone
}

// TriggerRecord is one entry of a deal's append-only automation audit log:
// a single dispatch attempt against a single workflow. Exactly one of
// Response and Error is set.
type TriggerRecord struct {
	WorkflowID  string         `json:"workflow_id"`
	Event       string         `json:"event"`
	TriggeredAt time.Time      `json:"triggered_at"`
	Response    map[string]any `json:"response,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Succeeded reports whether the recorded attempt got a 2xx engine reply.
func (r TriggerRecord) Succeeded() bool {
	return r.Error == ""
}
