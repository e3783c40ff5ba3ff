package broker

import (
	"time"

	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/pattern"
	"github.com/palvalidator/core/timeseries"
	"github.com/pkg/errors"
)

// ErrPositionConflict is returned when a market entry is submitted for a
// symbol that is already occupied (not flat) and pyramiding is disabled, or when
// pyramiding is attempted in the opposite direction of the existing
// position.
var ErrPositionConflict = errors.New("broker: position conflict")

// FillEvent records a single order fill for diagnostics/logging.
type FillEvent struct {
	Symbol string
	Kind   OrderKind
	Date   time.Time
	Price  decimal.Decimal
}

// Broker is the per-backtest order/position ledger: it owns one pending
// queue and one set of open positions per symbol, with optional
// pyramiding, and accumulates closed trades.
type Broker struct {
	pyramiding bool
	pending    map[string][]*Position
	open       map[string][]*Position
	closed     []*Position
}

// NewBroker constructs an empty ledger. When pyramiding is false, at most
// one position unit may exist per symbol at a time.
func NewBroker(pyramiding bool) *Broker {
	return &Broker{
		pyramiding: pyramiding,
		pending:    make(map[string][]*Position),
		open:       make(map[string][]*Position),
	}
}

// IsFlat reports whether a symbol has no pending or open position units.
func (b *Broker) IsFlat(symbol string) bool {
	return len(b.pending[symbol]) == 0 && len(b.open[symbol]) == 0
}

// OpenDirection returns the direction of a symbol's open units, if any.
func (b *Broker) OpenDirection(symbol string) (pattern.Direction, bool) {
	units := b.open[symbol]
	if len(units) == 0 {
		return 0, false
	}
	return units[0].Direction, true
}

// CanPyramid reports whether a new unit in direction dir may be added to a
// symbol that already has open units.
func (b *Broker) CanPyramid(symbol string, dir pattern.Direction) bool {
	if !b.pyramiding {
		return false
	}
	existing, ok := b.OpenDirection(symbol)
	return !ok || existing == dir
}

// SubmitMarketEntry enqueues a market-on-open entry order, transitioning
// the new position unit to PendingOpen. Fails if the symbol is occupied
// and pyramiding rules forbid a new unit.
func (b *Broker) SubmitMarketEntry(symbol string, direction pattern.Direction, date time.Time, volume decimal.Decimal, barIndex int, profitTargetPct, stopLossPct decimal.Decimal) (*Position, error) {
	if !b.IsFlat(symbol) && !b.CanPyramid(symbol, direction) {
		return nil, errors.Wrapf(ErrPositionConflict, "symbol %s already occupied", symbol)
	}
	order := newOrder(MarketOnOpen, symbol, volume, date, decimal.Decimal{}, direction)
	pos := newPendingPosition(symbol, direction, volume, order, barIndex, profitTargetPct, stopLossPct)
	b.pending[symbol] = append(b.pending[symbol], pos)
	return pos, nil
}

// ProcessPendingOrders advances a single symbol's ledger by one bar: it
// fills any PendingOpen unit at the bar's open (deriving profit-target and
// stop prices from the percentages captured at order submission), then
// evaluates exits for all Open units against the bar's high/low.
func (b *Broker) ProcessPendingOrders(symbol string, bar timeseries.Bar, barIndex int, sec *timeseries.Security) ([]FillEvent, error) {
	var events []FillEvent

	pending := b.pending[symbol]
	if len(pending) > 0 {
		remaining := pending[:0]
		for _, pos := range pending {
			if err := pos.fillEntry(bar.Timestamp, bar.Open, sec.RoundToTick); err != nil {
				return nil, err
			}
			events = append(events, FillEvent{Symbol: symbol, Kind: MarketOnOpen, Date: bar.Timestamp, Price: bar.Open})
			b.open[symbol] = append(b.open[symbol], pos)
		}
		b.pending[symbol] = remaining
	}

	openUnits := b.open[symbol]
	if len(openUnits) == 0 {
		return events, nil
	}
	stillOpen := openUnits[:0]
	for _, pos := range openUnits {
		closedNow, err := pos.evaluateExit(bar.Timestamp, bar.High, bar.Low, barIndex)
		if err != nil {
			return nil, err
		}
		if closedNow {
			events = append(events, FillEvent{Symbol: symbol, Kind: pos.ExitKind, Date: bar.Timestamp, Price: pos.ExitPrice})
			b.closed = append(b.closed, pos)
		} else {
			stillOpen = append(stillOpen, pos)
		}
	}
	b.open[symbol] = stillOpen
	return events, nil
}

// ForceExit closes every open unit for symbol at the given price and
// discards any pending entry orders that have not filled, used to liquidate
// at the end of a multi-range backtest.
func (b *Broker) ForceExit(symbol string, date time.Time, price decimal.Decimal, barIndex int) error {
	for _, pos := range b.open[symbol] {
		order := newOrder(MarketOnOpen, symbol, pos.Volume, date, price, pos.Direction)
		if err := order.fill(date, price); err != nil {
			return err
		}
		pos.profitTargetOrder.cancel()
		pos.stopOrder.cancel()
		pos.ExitDate = date
		pos.ExitPrice = price
		pos.ExitKind = MarketOnOpen
		pos.ExitBarIndex = barIndex
		pos.State = Closed
		b.closed = append(b.closed, pos)
	}
	b.open[symbol] = nil
	b.pending[symbol] = nil
	return nil
}

// ClosedTrades returns the accumulated closed-trade ledger.
func (b *Broker) ClosedTrades() ClosedTrades {
	return ClosedTrades(b.closed)
}
