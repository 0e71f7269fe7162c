package types

import "time"

// ExecutionRecord is one entry of the scheduler's append-only execution
// history for a plan.
type ExecutionRecord struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"plan_id"`
	Timestamp time.Time `json:"timestamp"`
	TxRef     string    `json:"tx_ref"`
	CostPaid  string    `json:"cost_paid"`
}

type ExecutionHistoryList struct {
	Records    []ExecutionRecord `json:"records"`
	TotalCount int               `json:"total_count"`
}
