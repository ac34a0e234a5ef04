package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Allocation records one lot's contribution to one sale. Immutable once
// created; the composite unique index on (tx_id, lot_id) guards replayed
// sells from double-consuming a lot.
type Allocation struct {
	AllocationID uuid.UUID `gorm:"column:allocation_id;type:uuid;primaryKey" json:"allocation_id"`
	TxID         uuid.UUID `gorm:"column:tx_id;type:uuid;not null;uniqueIndex:idx_alloc_tx_lot;index" json:"tx_id"`
	LotID        uuid.UUID `gorm:"column:lot_id;type:uuid;not null;uniqueIndex:idx_alloc_tx_lot;index" json:"lot_id"`
	Qty          float64   `gorm:"column:qty;not null" json:"qty"`
	CostUsd      float64   `gorm:"column:cost_usd;not null" json:"cost_usd"`
	ProceedsUsd  float64   `gorm:"column:proceeds_usd;not null" json:"proceeds_usd"`
	GainUsd      float64   `gorm:"column:gain_usd;not null" json:"gain_usd"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Allocation) TableName() string {
	return "Allocations"
}

func (a *Allocation) BeforeCreate(tx *gorm.DB) error {
	if a.AllocationID == uuid.Nil {
		a.AllocationID = uuid.New()
	}
	return nil
}
