// Package ledger applies incoming bitcoin transaction events to the tax-lot
// ledger: it decrypts and validates events, persists the transaction record,
// and drives lot creation (buys, interest deposits) and lot consumption
// (sells) through the costbasis selector.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"stacktax-backend/internal/costbasis"
	"stacktax-backend/internal/domain"
	"stacktax-backend/internal/encryption"
	"stacktax-backend/internal/price"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service orchestrates transaction processing against the ledger tables.
type Service struct {
	DB     *gorm.DB
	Prices price.Oracle
}

// SessionInfo carries the per-request user context supplied by the session
// collaborator: identity, encryption material, and the configured accounting
// method (empty means the default).
type SessionInfo struct {
	UserID           uuid.UUID
	Passphrase       string
	EncryptionSalt   string
	AccountingMethod costbasis.Method
}

// ProcessTransaction runs the full pipeline for one incoming event:
// decode → validate → decrypt → persist the transaction row → apply
// lot/allocation logic. A transaction row that persisted before a later
// failure is kept; retries rely on the idempotency checks in the apply step.
func (s *Service) ProcessTransaction(ctx context.Context, env Envelope, sess SessionInfo) (uuid.UUID, error) {
	if sess.UserID == uuid.Nil {
		return uuid.Nil, badRequestf("User ID missing from session")
	}
	if sess.Passphrase == "" {
		return uuid.Nil, badRequestf("Encryption passphrase missing from session")
	}
	if sess.EncryptionSalt == "" {
		return uuid.Nil, badRequestf("Encryption salt missing from session")
	}
	method := sess.AccountingMethod
	if method == "" {
		method = costbasis.DefaultMethod
	}

	ts, verr := env.Validate()
	if verr != nil {
		return uuid.Nil, verr
	}

	key := encryption.DeriveKey(sess.Passphrase, encryption.DecodeSaltHex(sess.EncryptionSalt))
	plaintext, err := encryption.DecryptString(env.EncryptedData, key)
	if err != nil {
		return uuid.Nil, badRequestf("Failed to decrypt transaction data")
	}
	form, verr := ParseFormData(plaintext)
	if verr != nil {
		return uuid.Nil, verr
	}

	tx := domain.BitcoinTransaction{
		UserID:        sess.UserID,
		Timestamp:     ts,
		Type:          form.Type,
		Amount:        form.Amount,
		Price:         form.Price,
		Fee:           form.Fee,
		Wallet:        form.Wallet,
		Notes:         form.Notes,
		EncryptedData: env.EncryptedData,
	}
	if len(form.Tags) > 0 {
		if b, err := json.Marshal(form.Tags); err == nil {
			tx.Tags = b
		}
	}
	if err := s.DB.WithContext(ctx).Create(&tx).Error; err != nil {
		return uuid.Nil, databaseErrorf(err, "Failed to create transaction record")
	}

	if err := s.applyTransactionLogic(ctx, sess.UserID, tx.TxID, ts, form, method); err != nil {
		if KindOf(err) != 0 {
			return uuid.Nil, err
		}
		return uuid.Nil, databaseErrorf(err, "Failed to apply transaction logic for tx %s", tx.TxID)
	}
	return tx.TxID, nil
}

// applyTransactionLogic branches on event type. Buys and qualifying interest
// deposits open lots; sells consume them; everything else has no ledger side
// effects. Every branch is idempotent per transaction id.
func (s *Service) applyTransactionLogic(ctx context.Context, userID, txID uuid.UUID, ts time.Time, form *TransactionFormData, method costbasis.Method) error {
	switch {
	case form.Type == "buy" && positive(form.Amount) && positive(form.Price):
		return s.applyBuy(ctx, userID, txID, ts, form)
	case form.Type == "sell" && positive(form.Amount) && positive(form.Price):
		return s.applySell(ctx, userID, txID, ts, *form.Amount, *form.Price, method)
	case form.Type == "deposit" && positive(form.Amount) && isInterestNote(form.Notes):
		return s.applyInterestDeposit(ctx, userID, txID, ts, form)
	}
	return nil
}

func (s *Service) applyBuy(ctx context.Context, userID, txID uuid.UUID, ts time.Time, form *TransactionFormData) error {
	var existing domain.Lot
	err := s.DB.WithContext(ctx).Where("tx_id = ?", txID).First(&existing).Error
	if err == nil {
		log.Info().Str("tx_id", txID.String()).Msg("lot already exists for buy, skipping creation")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return databaseErrorf(err, "Failed to check existing Lot for tx %s", txID)
	}

	amount := *form.Amount
	fee := 0.0
	if form.Fee != nil {
		fee = *form.Fee
	}
	lot := domain.Lot{
		TxID:           txID,
		UserID:         userID,
		OpenedAt:       ts,
		OriginalAmount: amount,
		RemainingQty:   amount,
		CostBasisUsd:   amount**form.Price + fee,
	}
	if err := s.DB.WithContext(ctx).Create(&lot).Error; err != nil {
		if isUniqueViolation(err) {
			// Concurrent replay beat us to it; already processed.
			return nil
		}
		return databaseErrorf(err, "Failed to create corresponding Lot for tx %s", txID)
	}
	log.Info().Str("tx_id", txID.String()).Float64("amount", amount).Msg("created lot for buy transaction")
	return nil
}

// errAlreadyApplied aborts the sell transaction when a concurrent replay has
// committed allocations first; the caller treats it as a successful no-op.
var errAlreadyApplied = errors.New("allocations already applied")

// applySell runs idempotency check, open-lot read, lot selection, and the
// allocation apply inside one database transaction, with row locks on the
// fetched lots where the dialect supports them, so concurrent sells for the
// same user serialize instead of over-allocating a lot.
func (s *Service) applySell(ctx context.Context, userID, txID uuid.UUID, ts time.Time, amount, salePrice float64, method costbasis.Method) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Allocation{}).Where("tx_id = ?", txID).Count(&count).Error; err != nil {
			return databaseErrorf(err, "Failed to check existing allocations for tx %s", txID)
		}
		if count > 0 {
			log.Info().Str("tx_id", txID.String()).Msg("allocations already exist for sell, skipping processing")
			return nil
		}

		q := tx.Where("user_id = ? AND remaining_qty > ?", userID, costbasis.Epsilon).Order("opened_at ASC")
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var openLots []domain.Lot
		if err := q.Find(&openLots).Error; err != nil {
			return databaseErrorf(err, "Failed to fetch open lots for tx %s", txID)
		}
		if len(openLots) == 0 {
			return badRequestf("No open lots available for user %s to process SELL %s", userID, txID)
		}

		available := make([]costbasis.AvailableLot, len(openLots))
		for i, lot := range openLots {
			unitCost := 0.0
			if lot.OriginalAmount > costbasis.Epsilon {
				unitCost = lot.CostBasisUsd / lot.OriginalAmount
			}
			available[i] = costbasis.AvailableLot{
				ID:             lot.LotID,
				OpenDateMs:     lot.OpenedAt.UnixMilli(),
				OriginalAmount: lot.OriginalAmount,
				Remaining:      lot.RemainingQty,
				UnitCost:       unitCost,
			}
		}

		result, err := costbasis.SelectLotsForSale(available, amount, method, salePrice, ts.UnixMilli())
		if err != nil {
			var insufficient *costbasis.InsufficientLotsError
			if errors.As(err, &insufficient) {
				return badRequestf("%s", insufficient.Error())
			}
			log.Warn().Err(err).Str("tx_id", txID.String()).Msg("lot selection failed for sell")
			return lotSelectionFailedf("%s", err.Error())
		}

		return s.applyAllocations(tx, txID, ts, result)
	})
	if errors.Is(err, errAlreadyApplied) {
		return nil
	}
	return err
}

// applyAllocations persists one sale's allocation rows and lot updates as an
// atomic unit. It must run inside the transaction that read (and locked) the
// lots; a partial commit would break the conservation invariant on retry.
func (s *Service) applyAllocations(tx *gorm.DB, txID uuid.UUID, saleTime time.Time, result *costbasis.SaleResult) error {
	for _, sel := range result.SelectedLots {
		if sel.AmountUsed <= costbasis.Epsilon {
			continue
		}
		alloc := domain.Allocation{
			TxID:        txID,
			LotID:       sel.ID,
			Qty:         sel.AmountUsed,
			CostUsd:     sel.CostBasis,
			ProceedsUsd: sel.Proceeds,
			GainUsd:     sel.RealizedGain,
		}
		if err := tx.Create(&alloc).Error; err != nil {
			if isUniqueViolation(err) {
				return errAlreadyApplied
			}
			return databaseErrorf(err, "Database update failed during allocation creation for tx %s", txID)
		}

		updates := map[string]interface{}{"remaining_qty": sel.RemainingAfter}
		if sel.RemainingAfter < costbasis.CloseEpsilon {
			term := domain.TermShort
			if sel.IsLongTerm {
				term = domain.TermLong
			}
			updates["closed_at"] = saleTime
			updates["proceeds_usd"] = sel.Proceeds
			updates["gain_usd"] = sel.RealizedGain
			updates["term"] = term
		}
		if err := tx.Model(&domain.Lot{}).Where("lot_id = ?", sel.ID).Updates(updates).Error; err != nil {
			return databaseErrorf(err, "Database update failed during lot update for tx %s", txID)
		}
	}
	log.Info().Str("tx_id", txID.String()).Int("lots", len(result.SelectedLots)).Msg("created allocations and updated lots for sell transaction")
	return nil
}

func (s *Service) applyInterestDeposit(ctx context.Context, userID, txID uuid.UUID, ts time.Time, form *TransactionFormData) error {
	var existing domain.Lot
	err := s.DB.WithContext(ctx).Where("tx_id = ?", txID).First(&existing).Error
	if err == nil {
		log.Info().Str("tx_id", txID.String()).Msg("lot already exists for interest transaction, skipping creation")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return databaseErrorf(err, "Failed to check existing Lot for interest tx %s", txID)
	}

	resolvedPrice := 0.0
	if positive(form.Price) {
		resolvedPrice = *form.Price
	} else if s.Prices != nil {
		fetched, ok, ferr := s.Prices.DailyUSDPrice(ctx, ts)
		if ferr != nil {
			log.Warn().Err(ferr).Str("tx_id", txID.String()).Msg("price lookup failed for interest transaction")
		}
		if ferr == nil && ok {
			resolvedPrice = fetched
		}
	}
	if resolvedPrice <= 0 {
		// The deposit stays a plain transaction with no lot.
		log.Warn().Str("tx_id", txID.String()).Msg("interest transaction missing price, skipping lot creation")
		return nil
	}

	amount := *form.Amount
	lot := domain.Lot{
		TxID:           txID,
		UserID:         userID,
		OpenedAt:       ts,
		OriginalAmount: amount,
		RemainingQty:   amount,
		CostBasisUsd:   amount * resolvedPrice,
	}
	if err := s.DB.WithContext(ctx).Create(&lot).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return databaseErrorf(err, "Failed to create corresponding Lot for interest tx %s", txID)
	}
	log.Info().Str("tx_id", txID.String()).Float64("amount", amount).Float64("price", resolvedPrice).Msg("created lot for interest transaction")
	return nil
}

// isUniqueViolation detects duplicate-key failures from the tx_id and
// (tx_id, lot_id) unique indexes across dialects.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
