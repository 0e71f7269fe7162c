package types

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	EventPlanCreated   EventKind = "plan.created"
	EventPlanExecuted  EventKind = "plan.executed"
	EventPlanCancelled EventKind = "plan.cancelled"
)

// Event is one entry of the ledger's append-only notification log. Height is
// strictly increasing and is what the scheduler's progress cursor scans over.
type Event struct {
	Height    uint64          `json:"height"`
	Kind      EventKind       `json:"kind"`
	PlanID    string          `json:"plan_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type PlanCreatedPayload struct {
	PlanID            string `json:"plan_id"`
	Owner             string `json:"owner"`
	Token             string `json:"token"`
	AmountPerInterval string `json:"amount_per_interval"`
	IntervalSeconds   uint64 `json:"interval_seconds"`
}

type PlanExecutedPayload struct {
	PlanID      string `json:"plan_id"`
	AmountSaved string `json:"amount_saved"`
	Yield       string `json:"yield"`
	Fee         string `json:"fee"`
}

type PlanCancelledPayload struct {
	Owner string `json:"owner"`
}

// ExecutePlanEvent is the payload of an execution task the scheduler hands
// to the relayer worker.
type ExecutePlanEvent struct {
	PlanID string `json:"plan_id"`
	DueAt  int64  `json:"due_at"`
}
