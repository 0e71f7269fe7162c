package types

import (
	"time"
)

// Plan is one recurring savings authorization. The ledger owns the record;
// the scheduler's cache only holds a shadow copy of it.
type Plan struct {
	ID                string    `json:"id" validate:"required"`
	Owner             string    `json:"owner" validate:"required"`
	Token             string    `json:"token" validate:"required"`
	AmountPerInterval string    `json:"amount_per_interval" validate:"required"`
	IntervalSeconds   uint64    `json:"interval_seconds" validate:"required,gt=0"`
	LastExecuted      time.Time `json:"last_executed"`
	Active            bool      `json:"active"`
	CreationHeight    uint64    `json:"creation_height"`
	CreatedAt         time.Time `json:"created_at"`
}

// DueAt returns the earliest time the next execution is permitted.
func (p *Plan) DueAt() time.Time {
	return p.LastExecuted.Add(time.Duration(p.IntervalSeconds) * time.Second)
}

// Eligible reports whether an execution submitted at now would pass the
// ledger's interval gate. The boundary is inclusive.
func (p *Plan) Eligible(now time.Time) bool {
	return p.Active && !now.Before(p.DueAt())
}

type PlanPaginatedList struct {
	Plans      []Plan `json:"plans"`
	TotalCount int    `json:"total_count"`
}
