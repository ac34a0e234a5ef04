package ledger

import (
	"context"
	"testing"
	"time"

	"stacktax-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertTx(t *testing.T, svc *Service, userID uuid.UUID, ts time.Time, txType string, amount, price *float64) uuid.UUID {
	t.Helper()
	tx := domain.BitcoinTransaction{
		UserID:        userID,
		Timestamp:     ts,
		Type:          txType,
		Amount:        amount,
		Price:         price,
		EncryptedData: "imported",
	}
	require.NoError(t, svc.DB.Create(&tx).Error)
	return tx.TxID
}

func TestProcessBulkImported_PartialFailure(t *testing.T) {
	svc, db := setupLedgerTest(t)
	userID := uuid.New()
	ctx := context.Background()
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	validBuy := insertTx(t, svc, userID, ts, "buy", fptr(1), fptr(10_000))
	missing := uuid.New().String()
	// Sells more than the single open lot holds, so it fails with insufficiency.
	oversell := insertTx(t, svc, userID, ts.AddDate(0, 1, 0), "sell", fptr(5), fptr(20_000))

	result := svc.ProcessBulkImported(ctx, userID, []string{validBuy.String(), missing, oversell.String()})

	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, missing, result.Errors[0].TxID)
	assert.Equal(t, "Transaction not found", result.Errors[0].Message)
	assert.Equal(t, oversell.String(), result.Errors[1].TxID)
	assert.Contains(t, result.Errors[1].Message, "insufficient available lots")

	var lots int64
	require.NoError(t, db.Model(&domain.Lot{}).Count(&lots).Error)
	assert.EqualValues(t, 1, lots, "the valid buy still produced its lot")
}

func TestProcessBulkImported_SkipsNonTradeTypesSilently(t *testing.T) {
	svc, _ := setupLedgerTest(t)
	userID := uuid.New()
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	deposit := insertTx(t, svc, userID, ts, "deposit", fptr(0.5), nil)
	withdrawal := insertTx(t, svc, userID, ts, "withdrawal", fptr(0.1), nil)

	result := svc.ProcessBulkImported(context.Background(), userID, []string{deposit.String(), withdrawal.String()})
	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, result.Errors)
}

func TestProcessBulkImported_MissingAmountOrPriceIsRecorded(t *testing.T) {
	svc, _ := setupLedgerTest(t)
	userID := uuid.New()
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	unpriced := insertTx(t, svc, userID, ts, "buy", fptr(1), nil)

	result := svc.ProcessBulkImported(context.Background(), userID, []string{unpriced.String()})
	assert.Equal(t, 0, result.Processed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, unpriced.String(), result.Errors[0].TxID)
	assert.Equal(t, "Invalid amount or price for buy/sell transaction", result.Errors[0].Message)
}

func TestProcessBulkImported_AlwaysUsesHIFO(t *testing.T) {
	svc, db := setupLedgerTest(t)
	userID := uuid.New()
	ctx := context.Background()

	cheapOld := insertTx(t, svc, userID, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), "buy", fptr(1), fptr(10_000))
	costlyNew := insertTx(t, svc, userID, time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), "buy", fptr(1), fptr(30_000))
	sell := insertTx(t, svc, userID, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), "sell", fptr(0.5), fptr(40_000))

	result := svc.ProcessBulkImported(ctx, userID, []string{cheapOld.String(), costlyNew.String(), sell.String()})
	assert.Equal(t, 3, result.Processed)
	assert.Empty(t, result.Errors)

	var alloc domain.Allocation
	require.NoError(t, db.Where("tx_id = ?", sell).First(&alloc).Error)
	var lot domain.Lot
	require.NoError(t, db.Where("lot_id = ?", alloc.LotID).First(&lot).Error)
	assert.Equal(t, costlyNew, lot.TxID, "bulk processing forces highest-cost-first")
}

func TestProcessBulkImported_ReplaySafe(t *testing.T) {
	svc, db := setupLedgerTest(t)
	userID := uuid.New()
	ctx := context.Background()
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	buy := insertTx(t, svc, userID, ts, "buy", fptr(1), fptr(10_000))
	sell := insertTx(t, svc, userID, ts.AddDate(0, 1, 0), "sell", fptr(0.5), fptr(20_000))
	ids := []string{buy.String(), sell.String()}

	first := svc.ProcessBulkImported(ctx, userID, ids)
	assert.Equal(t, 2, first.Processed)

	second := svc.ProcessBulkImported(ctx, userID, ids)
	assert.Equal(t, 2, second.Processed, "replays are no-ops, not failures")
	assert.Empty(t, second.Errors)

	var lotCount, allocCount int64
	require.NoError(t, db.Model(&domain.Lot{}).Count(&lotCount).Error)
	require.NoError(t, db.Model(&domain.Allocation{}).Count(&allocCount).Error)
	assert.EqualValues(t, 1, lotCount)
	assert.EqualValues(t, 1, allocCount)

	var lot domain.Lot
	require.NoError(t, db.First(&lot).Error)
	assert.InDelta(t, 0.5, lot.RemainingQty, 1e-9)
}
