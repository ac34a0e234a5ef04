// Package costbasis implements tax-lot selection for bitcoin disposals.
// Selection is a pure function over an in-memory snapshot of open lots;
// persistence is the caller's concern.
package costbasis

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Method is a lot-selection (cost-basis accounting) method.
type Method string

const (
	// FIFO consumes the earliest-opened lots first.
	FIFO Method = "FIFO"
	// LIFO consumes the latest-opened lots first.
	LIFO Method = "LIFO"
	// HIFO consumes the highest cost-per-unit lots first.
	HIFO Method = "HIFO"
)

// DefaultMethod applies when the user has not configured one.
const DefaultMethod = HIFO

// ParseMethod validates a stored/submitted method string.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case FIFO, LIFO, HIFO:
		return Method(s), true
	}
	return "", false
}

const (
	// Epsilon bounds all quantity comparisons.
	Epsilon = 1e-9
	// CloseEpsilon is the threshold below which a lot counts as fully consumed.
	CloseEpsilon = 1e-8

	// longTermHoldMs is 365 days in milliseconds, no calendar/leap adjustment.
	longTermHoldMs = 365 * 86_400_000
)

// IsLongTermHold reports whether a disposal at saleDateMs of a lot opened at
// openDateMs qualifies for long-term treatment.
func IsLongTermHold(openDateMs, saleDateMs int64) bool {
	return saleDateMs-openDateMs >= longTermHoldMs
}

// AvailableLot is an open lot as seen by the selector.
type AvailableLot struct {
	ID             uuid.UUID
	OpenDateMs     int64
	OriginalAmount float64
	Remaining      float64
	UnitCost       float64
}

// SelectedLot is one lot's share of a sale, with the quantities the applier
// needs to persist the allocation and update the lot.
type SelectedLot struct {
	ID             uuid.UUID
	AmountUsed     float64
	CostBasis      float64
	Proceeds       float64
	RealizedGain   float64
	RemainingAfter float64
	IsLongTerm     bool
}

// SaleResult is the ordered outcome of lot selection for one sale.
type SaleResult struct {
	SelectedLots   []SelectedLot
	TotalAllocated float64
}

// InsufficientLotsError reports that the open lots cannot cover the sale.
// Callers must treat it as a user-correctable condition, not a system fault.
type InsufficientLotsError struct {
	Requested float64
	Available float64
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("insufficient available lots: requested %.8f, available %.8f", e.Requested, e.Available)
}

// SelectLotsForSale orders openLots by method, then walks them consuming
// min(remaining, still needed) from each until the sale amount is covered.
// It never mutates its inputs and is deterministic for identical inputs:
// HIFO ties on unit cost break by ascending open date.
func SelectLotsForSale(openLots []AvailableLot, saleAmount float64, method Method, salePrice float64, saleDateMs int64) (*SaleResult, error) {
	if saleAmount <= 0 {
		return nil, fmt.Errorf("sale amount must be positive, got %v", saleAmount)
	}
	if salePrice < 0 {
		return nil, fmt.Errorf("sale price must not be negative, got %v", salePrice)
	}

	var available float64
	for _, lot := range openLots {
		available += lot.Remaining
	}
	if available < saleAmount-Epsilon {
		return nil, &InsufficientLotsError{Requested: saleAmount, Available: available}
	}

	ordered := make([]AvailableLot, len(openLots))
	copy(ordered, openLots)
	switch method {
	case FIFO:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].OpenDateMs < ordered[j].OpenDateMs
		})
	case LIFO:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].OpenDateMs > ordered[j].OpenDateMs
		})
	case HIFO:
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].UnitCost != ordered[j].UnitCost {
				return ordered[i].UnitCost > ordered[j].UnitCost
			}
			return ordered[i].OpenDateMs < ordered[j].OpenDateMs
		})
	default:
		return nil, fmt.Errorf("unknown accounting method %q", method)
	}

	result := &SaleResult{}
	needed := saleAmount
	for _, lot := range ordered {
		if needed <= Epsilon {
			break
		}
		amountUsed := lot.Remaining
		if needed < amountUsed {
			amountUsed = needed
		}
		if amountUsed <= Epsilon {
			continue
		}
		costBasis := lot.UnitCost * amountUsed
		proceeds := salePrice * amountUsed
		result.SelectedLots = append(result.SelectedLots, SelectedLot{
			ID:             lot.ID,
			AmountUsed:     amountUsed,
			CostBasis:      costBasis,
			Proceeds:       proceeds,
			RealizedGain:   proceeds - costBasis,
			RemainingAfter: lot.Remaining - amountUsed,
			IsLongTerm:     IsLongTermHold(lot.OpenDateMs, saleDateMs),
		})
		result.TotalAllocated += amountUsed
		needed -= amountUsed
	}

	return result, nil
}
