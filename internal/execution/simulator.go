// Package execution simulates order fills against a single instrument: at
// most one pending order, next-bar-open fills, cash/position bookkeeping,
// and an appended-only closed-trade ledger.
package execution

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ohlcv-backtester/pkg/types"
)

const positionEpsilon = 1e-9

// Simulator tracks cash, the current position, at most one pending order,
// and the trade ledger. Fills realize only at the open of the bar
// following submission — callers must call SettleFills before inspecting
// Equity/IsInvested for a given bar.
type Simulator struct {
	logger *zap.Logger

	feeRate float64

	cash     float64
	position types.Position
	pending  *types.PendingOrder

	entryTime int64
	trades    []types.Trade
}

// New constructs a Simulator with the given starting cash and fee rate.
func New(logger *zap.Logger, initialCash, feeRate float64) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		logger:  logger,
		feeRate: feeRate,
		cash:    initialCash,
	}
}

// Submit stores a pending order for the given side and quantity. Quantity
// must be positive; side encodes direction. Submitting while a pending
// order already exists overwrites it — the engine is responsible for
// calling Submit at most once per bar.
func (s *Simulator) Submit(side types.Side, qty float64) {
	s.pending = &types.PendingOrder{Side: side, Quantity: qty}
}

// ClosePosition submits an order that fully unwinds the current position,
// filling at the next bar's open. It panics if called while flat — callers
// must check IsInvested first.
func (s *Simulator) ClosePosition() {
	if !s.IsInvested() {
		panic("execution: ClosePosition called while flat")
	}
	s.Submit(s.closingSide(), s.position.Quantity)
}

// ClosePositionAt submits an order that fully unwinds the current position
// and fills at price instead of the next bar's open, for a stop-loss fill
// modeled at the stop level rather than wherever the bar happens to open.
// It panics if called while flat.
func (s *Simulator) ClosePositionAt(price float64) {
	if !s.IsInvested() {
		panic("execution: ClosePositionAt called while flat")
	}
	s.pending = &types.PendingOrder{Side: s.closingSide(), Quantity: s.position.Quantity, FillPrice: &price}
}

func (s *Simulator) closingSide() types.Side {
	if s.position.Side == types.SideLong {
		return types.SideShort
	}
	return types.SideLong
}

// SettleFills realizes any pending order at bar.Open, updating cash and
// position, and appends a closed Trade whenever the fill transitions the
// position from non-flat to flat.
func (s *Simulator) SettleFills(bar types.Bar) {
	if s.pending == nil {
		return
	}
	order := s.pending
	s.pending = nil

	price := bar.Open
	if order.FillPrice != nil {
		price = *order.FillPrice
	}
	fee := 0.0
	if s.feeRate != 0 {
		fee = price * order.Quantity * s.feeRate
	}

	wasInvested := s.IsInvested()
	signedQty := float64(order.Side) * order.Quantity

	s.cash -= signedQty * price
	s.cash -= fee

	if !wasInvested {
		// Opening a new position from flat.
		s.position = types.Position{
			Side:       order.Side,
			Quantity:   order.Quantity,
			EntryPrice: price,
			EntryTime:  bar.Timestamp,
		}
		s.entryTime = bar.Timestamp
		return
	}

	// Closing (or partially unwinding) an existing position.
	newQty := s.position.Quantity - order.Quantity
	if newQty <= positionEpsilon {
		pnl := float64(s.position.Side) * (price - s.position.EntryPrice) * s.position.Quantity
		if s.feeRate != 0 {
			entryFee := s.position.EntryPrice * s.position.Quantity * s.feeRate
			pnl -= entryFee + fee
		}
		trade := types.Trade{
			ID:         uuid.NewString(),
			EntryTime:  s.position.EntryTime,
			ExitTime:   bar.Timestamp,
			EntryPrice: s.position.EntryPrice,
			ExitPrice:  price,
			Side:       s.position.Side,
			Quantity:   s.position.Quantity,
			PnL:        pnl,
		}
		s.trades = append(s.trades, trade)
		s.position = types.Position{}
		return
	}

	s.position.Quantity = newQty
}

// IsInvested reports whether the current position is non-flat, guarding
// against float residue with positionEpsilon.
func (s *Simulator) IsInvested() bool {
	return s.position.Quantity > positionEpsilon
}

// Position returns the current position snapshot.
func (s *Simulator) Position() types.Position { return s.position }

// Cash returns the current cash balance.
func (s *Simulator) Cash() float64 { return s.cash }

// Equity returns cash plus unrealized PnL on the current position at the
// given mark price.
func (s *Simulator) Equity(price float64) float64 {
	if !s.IsInvested() {
		return s.cash
	}
	return s.cash + float64(s.position.Side)*s.position.Quantity*price
}

// Trades returns the closed-trade ledger accumulated so far. The returned
// slice must not be mutated by callers.
func (s *Simulator) Trades() []types.Trade { return s.trades }

// HasPending reports whether an order is awaiting settlement.
func (s *Simulator) HasPending() bool { return s.pending != nil }
