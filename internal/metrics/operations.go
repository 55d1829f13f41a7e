// Package metrics derives volume and activity figures from operation records.
//
// Every function here is pure: it reads the records it is given and never
// fails. Malformed amounts count as zero and malformed timestamps are left
// out of time-bucketed figures.
package metrics

import (
	"github.com/sawpanic/stablewatch/internal/classify"
	"github.com/sawpanic/stablewatch/internal/domain"
	"github.com/sawpanic/stablewatch/internal/numeric"
)

// OperationMetrics aggregates a set of operations.
type OperationMetrics struct {
	DepositVolume   float64 `json:"depositVolume"`
	WithdrawVolume  float64 `json:"withdrawVolume"`
	NetVolume       float64 `json:"netVolume"`
	DepositCount    int     `json:"depositCount"`
	WithdrawCount   int     `json:"withdrawCount"`
	PendingCount    int     `json:"pendingCount"`
	SuccessfulCount int     `json:"successfulCount"`
	FailedCount     int     `json:"failedCount"`
	Total           int     `json:"total"`
	SuccessRate     float64 `json:"successRate"`
}

// ComputeOperationMetrics sums volumes per direction and counts statuses.
// SuccessRate is 0 for an empty set.
func ComputeOperationMetrics(ops []domain.OperationRecord) OperationMetrics {
	var m OperationMetrics
	for _, op := range ops {
		switch {
		case op.IsDeposit():
			m.DepositVolume += numeric.ToNumber(op.Amount)
			m.DepositCount++
		case op.IsWithdraw():
			m.WithdrawVolume += numeric.ToNumber(op.Amount)
			m.WithdrawCount++
		}

		switch classify.Classify(op.Status) {
		case classify.ClassSuccess:
			m.SuccessfulCount++
		case classify.ClassPending:
			m.PendingCount++
		case classify.ClassFailure:
			m.FailedCount++
		}
	}

	m.NetVolume = m.DepositVolume - m.WithdrawVolume
	m.Total = len(ops)
	if m.Total > 0 {
		m.SuccessRate = float64(m.SuccessfulCount) / float64(m.Total)
	}
	return m
}

// ForStablecoin returns the operations that belong to one stablecoin, in
// their original order.
func ForStablecoin(ops []domain.OperationRecord, stablecoinID string) []domain.OperationRecord {
	scoped := make([]domain.OperationRecord, 0)
	for _, op := range ops {
		if op.StablecoinID == stablecoinID {
			scoped = append(scoped, op)
		}
	}
	return scoped
}
