// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrSessionExpired       = errors.New("session expired")
	ErrBasketNotFound       = errors.New("basket not found")
	ErrBasketEmpty          = errors.New("basket has no constituents")
	ErrTooManyConstituents  = errors.New("basket cannot hold more than 20 constituents")
	ErrConstituentExists    = errors.New("constituent already in basket")
	ErrIndexOutOfRange      = errors.New("constituent index out of range")
	ErrWeightSumInvalid     = errors.New("constituent weights do not sum to 100")
	ErrBelowMinInvestment   = errors.New("amount below minimum investment")
	ErrNoPricesAvailable    = errors.New("no prices available for basket")
	ErrInvestmentNotFound   = errors.New("investment not found")
	ErrNoHoldings           = errors.New("investment has no holdings")
	ErrOrderRejected        = errors.New("order rejected by broker")
	ErrSIPNotFound          = errors.New("SIP schedule not found")
	ErrSIPNotActive         = errors.New("SIP schedule is not active")
	ErrSIPNotDue            = errors.New("SIP schedule is not due for execution")
	ErrSIPCompleted         = errors.New("SIP schedule has completed")
	ErrSIPTerminal          = errors.New("SIP schedule is in a terminal state")
	ErrAlreadyExecutedToday = errors.New("SIP already executed today")
	ErrDatabaseError        = errors.New("database error")
)

// ValidationError represents a caller-correctable validation failure.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// BrokerError represents an error from the broker API.
type BrokerError struct {
	Code    string
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s]: %s", e.Code, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(code, message string, err error) *BrokerError {
	return &BrokerError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// OrderError represents an error related to order submission.
type OrderError struct {
	Symbol string
	Side   string
	Reason string
	Err    error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error %s %s: %s: %v", e.Side, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error %s %s: %s", e.Side, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(symbol, side, reason string, err error) *OrderError {
	return &OrderError{
		Symbol: symbol,
		Side:   side,
		Reason: reason,
		Err:    err,
	}
}
