// Package model holds the platform's wire types.
package model

import "time"

type KPISummary struct {
	TotalUsers          int       `json:"totalUsers"`
	ActiveUsers         int       `json:"activeUsers"`
	TotalCO2ReductionKg float64   `json:"totalCo2ReductionKg"`
	TotalEnergySavedKWh float64   `json:"totalEnergySavedKwh"`
	TotalPointsIssued   int64     `json:"totalPointsIssued"`
	TotalPointsRedeemed int64     `json:"totalPointsRedeemed"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type MonthlyUsage struct {
	Month    string  `json:"month"` // YYYY-MM
	UsageKWh float64 `json:"usageKwh"`
	CO2Kg    float64 `json:"co2Kg"`
}

type CO2Point struct {
	Date        string  `json:"date"`
	ReductionKg float64 `json:"reductionKg"`
	BaselineKg  float64 `json:"baselineKg"`
}

type Product struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	PointsRequired int64  `json:"pointsRequired"`
	Stock          int64  `json:"stock"`
	Active         bool   `json:"active"`
}

// Balance is mutated only by the server; clients never compute it.
type Balance struct {
	CurrentBalance int64     `json:"currentBalance"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

type RedemptionRequest struct {
	ProductID string `json:"productId"`
}

// RedemptionResult is authoritative and replaces any optimistic state.
type RedemptionResult struct {
	NewBalance int64 `json:"newBalance"`
	Success    bool  `json:"success"`
}

type HistoryKind string

const (
	Earn  HistoryKind = "earn"
	Spend HistoryKind = "spend"
)

// HistoryRecord is one ledger line. Lists come most recent first.
type HistoryRecord struct {
	ID           string      `json:"id"`
	Delta        int64       `json:"delta"`
	Reason       string      `json:"reason"`
	BalanceAfter int64       `json:"balanceAfter"`
	CreatedAt    time.Time   `json:"createdAt"`
	Kind         HistoryKind `json:"kind"`
}
