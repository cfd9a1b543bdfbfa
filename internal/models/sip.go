package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SIPFrequency represents how often a SIP executes.
type SIPFrequency string

const (
	SIPDaily   SIPFrequency = "DAILY"
	SIPWeekly  SIPFrequency = "WEEKLY"
	SIPMonthly SIPFrequency = "MONTHLY"
)

// SIPStatus represents the lifecycle state of a SIP schedule.
// Cancelled and Completed are terminal.
type SIPStatus string

const (
	SIPActive    SIPStatus = "ACTIVE"
	SIPPaused    SIPStatus = "PAUSED"
	SIPCancelled SIPStatus = "CANCELLED"
	SIPCompleted SIPStatus = "COMPLETED"
)

// Terminal reports whether the status admits no further transitions.
func (s SIPStatus) Terminal() bool {
	return s == SIPCancelled || s == SIPCompleted
}

// SIPSchedule represents a recurring investment schedule into a basket.
type SIPSchedule struct {
	ID                    string
	BasketID              string
	Amount                decimal.Decimal
	Frequency             SIPFrequency
	DayOfWeek             time.Weekday // weekly SIPs, default Monday
	DayOfMonth            int          // monthly SIPs, 1-31
	StartDate             time.Time
	EndDate               *time.Time
	NextExecutionDate     time.Time
	Status                SIPStatus
	CompletedInstallments int
	TotalInvested         decimal.Decimal
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// SIPExecution records one completed SIP installment. The unique
// (SIP, date) pair backs the already-executed-today idempotency guard.
type SIPExecution struct {
	ID            string
	SIPID         string
	ExecutionDate time.Time
	Amount        decimal.Decimal
	OrderCount    int
	CreatedAt     time.Time
}
