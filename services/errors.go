package services

import (
	"errors"
	"fmt"

	"github.com/napassornsp/chat-new/models"
)

// Sentinel errors separating business denials from system faults.
// Storage faults are wrapped and propagate as-is; they must never be
// mistaken for one of these.
var (
	// ErrUnauthorized is returned when an operation on an owned
	// resource has no authenticated caller.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for rows that are absent or owned by
	// another user. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrUnknownTable is returned for table names outside the registry.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownPlan is returned for plan names outside the catalog.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrMissingValues is returned when a write carries no row data.
	ErrMissingValues = errors.New("missing values")
)

// InsufficientCreditsError is the typed, recoverable denial from the
// credit gate. It carries the current snapshot so callers can render
// the remaining allowance.
type InsufficientCreditsError struct {
	Bucket  models.Bucket
	Need    int
	Credits models.CreditSnapshot
}

// Error implements the error interface.
func (e *InsufficientCreditsError) Error() string {
	switch e.Bucket {
	case models.BucketOCRBill:
		return "No Bill OCR credits left."
	case models.BucketOCRBank:
		return "No Bank OCR credits left."
	default:
		return fmt.Sprintf("Not enough chat credits (need %d).", e.Need)
	}
}

// AsInsufficientCredits unwraps err into an InsufficientCreditsError,
// or nil when err is not one.
func AsInsufficientCredits(err error) *InsufficientCreditsError {
	var denial *InsufficientCreditsError
	if errors.As(err, &denial) {
		return denial
	}
	return nil
}
