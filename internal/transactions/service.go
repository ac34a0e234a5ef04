package transactions

import (
	"context"
	"encoding/json"

	"stacktax-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// FormattedTx is one history row. Ciphertext is never included; only the
// queryable copies of the decrypted fields go out.
type FormattedTx struct {
	TxID      uuid.UUID   `json:"tx_id"`
	Timestamp interface{} `json:"timestamp"`
	Type      string      `json:"type"`
	Amount    *float64    `json:"amount"`
	Price     *float64    `json:"price"`
	Fee       *float64    `json:"fee"`
	Wallet    *string     `json:"wallet"`
	Tags      []string    `json:"tags"`
	Notes     *string     `json:"notes"`
	CreatedAt interface{} `json:"created_at"`
}

func (s *Service) ViewTransactions(ctx context.Context, userID string) (interface{}, string, int) {
	if userID == "" {
		return nil, "user_id missing from session", 401
	}

	var txs []domain.BitcoinTransaction
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Find(&txs).Error; err != nil {
		return nil, "Internal Server Error", 500
	}

	if len(txs) == 0 {
		return []interface{}{}, "", 0
	}

	out := make([]FormattedTx, len(txs))
	for i, tx := range txs {
		ft := FormattedTx{
			TxID:      tx.TxID,
			Timestamp: tx.Timestamp,
			Type:      tx.Type,
			Amount:    tx.Amount,
			Price:     tx.Price,
			Fee:       tx.Fee,
			Wallet:    tx.Wallet,
			Notes:     tx.Notes,
			CreatedAt: tx.CreatedAt,
		}
		if len(tx.Tags) > 0 {
			var tags []string
			if err := json.Unmarshal(tx.Tags, &tags); err == nil {
				ft.Tags = tags
			}
		}
		out[i] = ft
	}

	return out, "", 0
}
