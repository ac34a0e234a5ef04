package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lot term classifications (holding period at close).
const (
	TermLong  = "Long"
	TermShort = "Short"
)

// Lot is a batch of acquired bitcoin opened by a buy (or qualifying interest
// deposit). RemainingQty only ever decreases, via allocations; the unique
// index on tx_id makes replayed creates fail instead of duplicating the lot.
// ClosedAt/ProceedsUsd/GainUsd/Term are set exactly once, when RemainingQty
// drops below the close epsilon.
type Lot struct {
	LotID          uuid.UUID  `gorm:"column:lot_id;type:uuid;primaryKey" json:"lot_id"`
	TxID           uuid.UUID  `gorm:"column:tx_id;type:uuid;not null;uniqueIndex" json:"tx_id"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	OpenedAt       time.Time  `gorm:"column:opened_at;not null" json:"opened_at"`
	OriginalAmount float64    `gorm:"column:original_amount;not null" json:"original_amount"`
	RemainingQty   float64    `gorm:"column:remaining_qty;not null" json:"remaining_qty"`
	CostBasisUsd   float64    `gorm:"column:cost_basis_usd;not null" json:"cost_basis_usd"`
	ClosedAt       *time.Time `gorm:"column:closed_at" json:"closed_at"`
	ProceedsUsd    *float64   `gorm:"column:proceeds_usd" json:"proceeds_usd"`
	GainUsd        *float64   `gorm:"column:gain_usd" json:"gain_usd"`
	Term           *string    `gorm:"column:term;type:varchar(10)" json:"term"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Lot) TableName() string {
	return "Lots"
}

func (l *Lot) BeforeCreate(tx *gorm.DB) error {
	if l.LotID == uuid.Nil {
		l.LotID = uuid.New()
	}
	return nil
}
