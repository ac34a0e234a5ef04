package ledger

import (
	"context"
	"encoding/json"
	"errors"

	"stacktax-backend/internal/costbasis"
	"stacktax-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BulkResult reports a bulk import run: processed counts only fully
// successful items, and every failed item is captured individually.
type BulkResult struct {
	Processed int         `json:"processed"`
	Errors    []BulkError `json:"errors"`
}

// BulkError is one failed item of a bulk run.
type BulkError struct {
	TxID    string `json:"txId"`
	Message string `json:"message"`
}

// ProcessBulkImported applies lot/allocation logic to a batch of already
// persisted transactions, in input order, one at a time. Items that are not
// buys or sells are skipped silently; a failing item is recorded and never
// aborts the batch. Bulk runs always use HIFO regardless of the user's
// configured method.
func (s *Service) ProcessBulkImported(ctx context.Context, userID uuid.UUID, txIDs []string) BulkResult {
	result := BulkResult{Errors: []BulkError{}}

	for _, raw := range txIDs {
		txID, err := uuid.Parse(raw)
		if err != nil {
			result.Errors = append(result.Errors, BulkError{TxID: raw, Message: "Transaction not found"})
			continue
		}

		var tx domain.BitcoinTransaction
		if err := s.DB.WithContext(ctx).Where("tx_id = ?", txID).First(&tx).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.Errors = append(result.Errors, BulkError{TxID: raw, Message: "Transaction not found"})
			} else {
				result.Errors = append(result.Errors, BulkError{TxID: raw, Message: "Failed to load transaction"})
			}
			continue
		}

		if tx.Type != "buy" && tx.Type != "sell" {
			continue
		}
		if tx.Amount == nil || tx.Price == nil {
			result.Errors = append(result.Errors, BulkError{TxID: raw, Message: "Invalid amount or price for buy/sell transaction"})
			continue
		}

		form := &TransactionFormData{
			Type:   tx.Type,
			Amount: tx.Amount,
			Price:  tx.Price,
			Fee:    tx.Fee,
			Wallet: tx.Wallet,
			Notes:  tx.Notes,
		}
		if len(tx.Tags) > 0 {
			_ = json.Unmarshal(tx.Tags, &form.Tags)
		}

		if err := s.applyTransactionLogic(ctx, userID, tx.TxID, tx.Timestamp, form, costbasis.HIFO); err != nil {
			result.Errors = append(result.Errors, BulkError{TxID: raw, Message: err.Error()})
			continue
		}
		result.Processed++
	}

	return result
}
