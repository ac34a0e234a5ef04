package lots

import (
	"context"
	"errors"
	"sort"

	"stacktax-backend/internal/costbasis"
	"stacktax-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service encapsulates lot and allocation views.
type Service struct {
	DB *gorm.DB
}

// ViewLots returns the user's lots split into open and closed, oldest first.
func (s *Service) ViewLots(ctx context.Context, userID uuid.UUID) (map[string]interface{}, error) {
	if userID == uuid.Nil {
		return nil, errors.New("user_id is required")
	}

	var all []domain.Lot
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("opened_at ASC").
		Find(&all).Error; err != nil {
		return nil, err
	}

	open := make([]domain.Lot, 0, len(all))
	closed := make([]domain.Lot, 0)
	for _, l := range all {
		if l.ClosedAt != nil {
			closed = append(closed, l)
		} else {
			open = append(open, l)
		}
	}

	return map[string]interface{}{
		"open":   open,
		"closed": closed,
	}, nil
}

// AllocationView is one lot's contribution to a sale, with the lot's open
// date so clients can show the holding period.
type AllocationView struct {
	AllocationID uuid.UUID   `json:"allocation_id"`
	LotID        uuid.UUID   `json:"lot_id"`
	LotOpenedAt  interface{} `json:"lot_opened_at"`
	Qty          float64     `json:"qty"`
	CostUsd      float64     `json:"cost_usd"`
	ProceedsUsd  float64     `json:"proceeds_usd"`
	GainUsd      float64     `json:"gain_usd"`
	Term         string      `json:"term"`
}

// ViewAllocations returns the allocations for one of the user's sale
// transactions.
func (s *Service) ViewAllocations(ctx context.Context, userID uuid.UUID, txID string) ([]AllocationView, error) {
	if txID == "" {
		return nil, errors.New("tx_id is required")
	}
	parsed, err := uuid.Parse(txID)
	if err != nil {
		return nil, errors.New("Invalid tx_id format (must be a valid UUID)")
	}

	var tx domain.BitcoinTransaction
	if err := s.DB.WithContext(ctx).Where("tx_id = ?", parsed).First(&tx).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New("Transaction not found")
		}
		return nil, err
	}
	if tx.UserID != userID {
		return nil, errors.New("Unauthorized access to transaction")
	}

	var allocs []domain.Allocation
	if err := s.DB.WithContext(ctx).Where("tx_id = ?", parsed).Find(&allocs).Error; err != nil {
		return nil, err
	}
	if len(allocs) == 0 {
		return []AllocationView{}, nil
	}

	lotIDs := make([]uuid.UUID, 0, len(allocs))
	for _, a := range allocs {
		lotIDs = append(lotIDs, a.LotID)
	}
	var lots []domain.Lot
	if err := s.DB.WithContext(ctx).Where("lot_id IN ?", lotIDs).Find(&lots).Error; err != nil {
		return nil, err
	}
	lotByID := make(map[uuid.UUID]domain.Lot, len(lots))
	for _, l := range lots {
		lotByID[l.LotID] = l
	}

	saleMs := tx.Timestamp.UnixMilli()
	out := make([]AllocationView, 0, len(allocs))
	for _, a := range allocs {
		v := AllocationView{
			AllocationID: a.AllocationID,
			LotID:        a.LotID,
			Qty:          a.Qty,
			CostUsd:      a.CostUsd,
			ProceedsUsd:  a.ProceedsUsd,
			GainUsd:      a.GainUsd,
		}
		if l, ok := lotByID[a.LotID]; ok {
			v.LotOpenedAt = l.OpenedAt
			if costbasis.IsLongTermHold(l.OpenedAt.UnixMilli(), saleMs) {
				v.Term = domain.TermLong
			} else {
				v.Term = domain.TermShort
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// YearSummary aggregates realized results for one calendar year of sales.
type YearSummary struct {
	Year          int     `json:"year"`
	LongTermGain  float64 `json:"long_term_gain"`
	ShortTermGain float64 `json:"short_term_gain"`
	TotalProceeds float64 `json:"total_proceeds"`
	TotalCost     float64 `json:"total_cost"`
	SaleCount     int     `json:"sale_count"`
}

// GainsSummary aggregates the user's realized gains per calendar year of the
// sale date, split long/short by holding period.
func (s *Service) GainsSummary(ctx context.Context, userID uuid.UUID) ([]YearSummary, error) {
	if userID == uuid.Nil {
		return nil, errors.New("user_id is required")
	}

	var lots []domain.Lot
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&lots).Error; err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return []YearSummary{}, nil
	}
	lotByID := make(map[uuid.UUID]domain.Lot, len(lots))
	lotIDs := make([]uuid.UUID, 0, len(lots))
	for _, l := range lots {
		lotByID[l.LotID] = l
		lotIDs = append(lotIDs, l.LotID)
	}

	var allocs []domain.Allocation
	if err := s.DB.WithContext(ctx).Where("lot_id IN ?", lotIDs).Find(&allocs).Error; err != nil {
		return nil, err
	}
	if len(allocs) == 0 {
		return []YearSummary{}, nil
	}

	txIDs := make([]uuid.UUID, 0, len(allocs))
	seen := make(map[uuid.UUID]bool)
	for _, a := range allocs {
		if !seen[a.TxID] {
			seen[a.TxID] = true
			txIDs = append(txIDs, a.TxID)
		}
	}
	var sales []domain.BitcoinTransaction
	if err := s.DB.WithContext(ctx).Where("tx_id IN ?", txIDs).Find(&sales).Error; err != nil {
		return nil, err
	}
	saleByID := make(map[uuid.UUID]domain.BitcoinTransaction, len(sales))
	for _, tx := range sales {
		saleByID[tx.TxID] = tx
	}

	byYear := make(map[int]*YearSummary)
	salesCounted := make(map[int]map[uuid.UUID]bool)
	for _, a := range allocs {
		sale, ok := saleByID[a.TxID]
		if !ok {
			continue
		}
		year := sale.Timestamp.UTC().Year()
		y := byYear[year]
		if y == nil {
			y = &YearSummary{Year: year}
			byYear[year] = y
			salesCounted[year] = make(map[uuid.UUID]bool)
		}
		lot := lotByID[a.LotID]
		if costbasis.IsLongTermHold(lot.OpenedAt.UnixMilli(), sale.Timestamp.UnixMilli()) {
			y.LongTermGain += a.GainUsd
		} else {
			y.ShortTermGain += a.GainUsd
		}
		y.TotalProceeds += a.ProceedsUsd
		y.TotalCost += a.CostUsd
		if !salesCounted[year][a.TxID] {
			salesCounted[year][a.TxID] = true
			y.SaleCount++
		}
	}

	out := make([]YearSummary, 0, len(byYear))
	for _, y := range byYear {
		out = append(out, *y)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}
