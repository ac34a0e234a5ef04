package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BitcoinTransaction is the immutable record of one user event. The decrypted
// fields are copied in for querying; the original ciphertext is retained
// untouched in EncryptedData. Amount/Price/Fee are nullable because some
// event types (plain deposits, withdrawals) may omit them.
type BitcoinTransaction struct {
	TxID          uuid.UUID      `gorm:"column:tx_id;type:uuid;primaryKey" json:"tx_id"`
	UserID        uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Timestamp     time.Time      `gorm:"column:timestamp;not null" json:"timestamp"`
	Type          string         `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Amount        *float64       `gorm:"column:amount" json:"amount"`
	Price         *float64       `gorm:"column:price" json:"price"`
	Fee           *float64       `gorm:"column:fee" json:"fee"`
	Wallet        *string        `gorm:"column:wallet" json:"wallet"`
	Tags          datatypes.JSON `gorm:"column:tags" json:"tags"`
	Notes         *string        `gorm:"column:notes" json:"notes"`
	EncryptedData string         `gorm:"column:encrypted_data;type:text;not null" json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (BitcoinTransaction) TableName() string {
	return "BitcoinTransactions"
}

func (t *BitcoinTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.TxID == uuid.Nil {
		t.TxID = uuid.New()
	}
	return nil
}
