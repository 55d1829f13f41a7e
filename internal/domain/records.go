// Package domain holds the records served by the stablecoin backend and the
// snapshot envelope assembled from them.
package domain

import (
	"time"

	"github.com/sawpanic/stablewatch/internal/numeric"
)

// Stablecoin deployment states known to the backend. Other values may appear.
const (
	StatusRegistered    = "registered"
	StatusDeployed      = "deployed"
	StatusPendingReview = "pending_review"
	StatusMaintenance   = "maintenance"
)

// Operation types.
const (
	OperationDeposit  = "deposit"
	OperationWithdraw = "withdraw"
)

// StablecoinRecord is one stablecoin program as listed by the backend.
type StablecoinRecord struct {
	StablecoinID string  `json:"stablecoin_id"`
	Symbol       string  `json:"symbol"`
	ClientID     string  `json:"client_id"`
	ClientName   string  `json:"client_name"`
	ClientWallet string  `json:"client_wallet"`
	WebhookURL   string  `json:"webhook_url,omitempty"`
	Status       string  `json:"status"`
	ERC20Address *string `json:"erc20_address"`
	CreatedAt    string  `json:"created_at"`
	DeployedAt   *string `json:"deployed_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// IsDeployed reports whether the coin is live on chain.
func (s StablecoinRecord) IsDeployed() bool { return s.Status == StatusDeployed }

// OperationRecord is a single deposit or withdrawal.
//
// Amount keeps whatever JSON value the backend sent (number, string or null);
// use numeric.ToNumber to read it.
type OperationRecord struct {
	OperationID        string  `json:"operation_id"`
	StablecoinID       string  `json:"stablecoin_id"`
	OperationType      string  `json:"operation_type"`
	Amount             any     `json:"amount"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at,omitempty"`
	TxHash             *string `json:"tx_hash,omitempty"`
	BurnTxHash         *string `json:"burn_tx_hash,omitempty"`
	PaymentConfirmedAt *string `json:"payment_confirmed_at,omitempty"`
	MintedAt           *string `json:"minted_at,omitempty"`
	BurnedAt           *string `json:"burned_at,omitempty"`
	PixTransferredAt   *string `json:"pix_transferred_at,omitempty"`
	NotifiedAt         *string `json:"notified_at,omitempty"`
}

// IsDeposit reports whether the operation mints tokens.
func (o OperationRecord) IsDeposit() bool { return o.OperationType == OperationDeposit }

// IsWithdraw reports whether the operation burns tokens.
func (o OperationRecord) IsWithdraw() bool { return o.OperationType == OperationWithdraw }

// FlowTotals are the precomputed counters for one direction. Fields decode
// leniently: quoted or malformed numbers never fail the stats response.
type FlowTotals struct {
	TotalCount      numeric.Count  `json:"total_count"`
	SuccessfulCount numeric.Count  `json:"successful_count"`
	TotalAmount     numeric.Amount `json:"total_amount"`
}

// VolumeTotals are the precomputed volume figures for a coin.
type VolumeTotals struct {
	TotalDeposits    numeric.Amount `json:"total_deposits"`
	TotalWithdrawals numeric.Amount `json:"total_withdrawals"`
	NetVolume        numeric.Amount `json:"net_volume"`
}

// LatestOperation summarises the newest operation of a coin.
type LatestOperation struct {
	OperationID string `json:"operation_id"`
	Type        string `json:"type"`
	Amount      any    `json:"amount"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// StatsBody is the "stats" object of the stats endpoint.
type StatsBody struct {
	Deposits        FlowTotals               `json:"deposits"`
	Withdrawals     FlowTotals               `json:"withdrawals"`
	Volume          VolumeTotals             `json:"volume"`
	StatusBreakdown map[string]numeric.Count `json:"status_breakdown"`
	LatestOperation *LatestOperation         `json:"latest_operation"`
}

// StablecoinStats is the per-coin enrichment returned by the stats endpoint.
type StablecoinStats struct {
	StablecoinID string    `json:"stablecoin_id"`
	Symbol       string    `json:"symbol"`
	ERC20Address *string   `json:"erc20_address"`
	Status       string    `json:"status"`
	CreatedAt    string    `json:"created_at"`
	DeployedAt   *string   `json:"deployed_at"`
	Stats        StatsBody `json:"stats"`
}

// Pagination is the paging block of list responses.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// Page is the envelope of the backend list endpoints.
type Page[T any] struct {
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Snapshot is one assembled, read-only view of the backend.
//
// Every key of StatsByStablecoin is the id of an entry in Stablecoins. Coins
// whose stats could not be fetched have no entry.
type Snapshot struct {
	Stablecoins       []StablecoinRecord         `json:"stablecoins"`
	Operations        []OperationRecord          `json:"operations"`
	StatsByStablecoin map[string]StablecoinStats `json:"statsByStablecoin"`
	FetchedAt         time.Time                  `json:"fetchedAt"`
}

// Stats returns the stats entry for a coin, or nil when it is absent.
func (s *Snapshot) Stats(stablecoinID string) *StablecoinStats {
	if s == nil {
		return nil
	}
	st, ok := s.StatsByStablecoin[stablecoinID]
	if !ok {
		return nil
	}
	return &st
}

// Stablecoin looks a coin up by id.
func (s *Snapshot) Stablecoin(stablecoinID string) (StablecoinRecord, bool) {
	if s == nil {
		return StablecoinRecord{}, false
	}
	for _, coin := range s.Stablecoins {
		if coin.StablecoinID == stablecoinID {
			return coin, true
		}
	}
	return StablecoinRecord{}, false
}
