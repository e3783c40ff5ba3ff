package broker

import (
	"time"

	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/pattern"
	"github.com/pkg/errors"
)

// PositionState is a position's place in the Flat/PendingOpen/Open/Closed
// lifecycle.
type PositionState int

const (
	Flat PositionState = iota
	PendingOpen
	Open
	Closed
)

// ErrInvalidTransition is returned when a position fill is attempted out of
// its expected state.
var ErrInvalidTransition = errors.New("broker: invalid position state transition")

// Position tracks exactly one entry fill plus zero-or-one exit fill, along
// with the pending orders that drive its lifecycle.
type Position struct {
	Symbol    string
	Direction pattern.Direction
	State     PositionState
	Volume    decimal.Decimal

	EntryOrder *Order
	EntryDate  time.Time
	EntryPrice decimal.Decimal

	ProfitTargetPrice decimal.Decimal
	StopPrice         decimal.Decimal
	profitTargetOrder *Order
	stopOrder         *Order

	ExitDate  time.Time
	ExitPrice decimal.Decimal
	ExitKind  OrderKind

	EntryBarIndex int
	ExitBarIndex  int

	profitTargetPct decimal.Decimal
	stopLossPct     decimal.Decimal
}

func newPendingPosition(symbol string, direction pattern.Direction, volume decimal.Decimal, entryOrder *Order, entryBarIndex int, profitTargetPct, stopLossPct decimal.Decimal) *Position {
	return &Position{
		Symbol:          symbol,
		Direction:       direction,
		State:           PendingOpen,
		Volume:          volume,
		EntryOrder:      entryOrder,
		EntryBarIndex:   entryBarIndex,
		profitTargetPct: profitTargetPct,
		stopLossPct:     stopLossPct,
	}
}

// fillEntry transitions PendingOpen -> Open, setting the entry price and
// computing profit-target/stop prices from the percentage offsets supplied
// at order submission (rounded to the security's tick), then enqueues the
// exit orders.
func (p *Position) fillEntry(date time.Time, fillPrice decimal.Decimal, roundToTick func(decimal.Decimal) (decimal.Decimal, error)) error {
	if p.State != PendingOpen {
		return errors.Wrapf(ErrInvalidTransition, "position %s: fillEntry requires PendingOpen", p.Symbol)
	}
	if err := p.EntryOrder.fill(date, fillPrice); err != nil {
		return err
	}
	p.EntryDate = date
	p.EntryPrice = fillPrice

	one := decimal.FromInt(1, fillPrice.Scale())
	hundred := decimal.FromInt(100, p.profitTargetPct.Scale())

	var targetFactor, stopFactor decimal.Decimal
	ptFrac, err := p.profitTargetPct.Div(hundred, decimal.HalfAwayFromZero)
	if err != nil {
		return err
	}
	slFrac, err := p.stopLossPct.Div(hundred, decimal.HalfAwayFromZero)
	if err != nil {
		return err
	}
	if p.Direction == pattern.Long {
		targetFactor, err = one.Add(ptFrac)
		if err != nil {
			return err
		}
		stopFactor, err = one.Sub(slFrac)
		if err != nil {
			return err
		}
	} else {
		targetFactor, err = one.Sub(ptFrac)
		if err != nil {
			return err
		}
		stopFactor, err = one.Add(slFrac)
		if err != nil {
			return err
		}
	}
	rawTarget, err := fillPrice.Mul(targetFactor)
	if err != nil {
		return err
	}
	rawStop, err := fillPrice.Mul(stopFactor)
	if err != nil {
		return err
	}
	p.ProfitTargetPrice, err = roundToTick(rawTarget)
	if err != nil {
		return err
	}
	p.StopPrice, err = roundToTick(rawStop)
	if err != nil {
		return err
	}

	p.profitTargetOrder = newOrder(LimitExit, p.Symbol, p.Volume, date, p.ProfitTargetPrice, p.Direction)
	p.stopOrder = newOrder(StopExit, p.Symbol, p.Volume, date, p.StopPrice, p.Direction)
	p.State = Open
	return nil
}

// evaluateExit checks the current bar's high/low against the profit
// target and stop, filling whichever triggers (stop wins ties), per
// spec.md §4.7's conservative tie-break rule. Returns true if the position
// closed this bar.
func (p *Position) evaluateExit(date time.Time, high, low decimal.Decimal, barIndex int) (bool, error) {
	if p.State != Open {
		return false, errors.Wrapf(ErrInvalidTransition, "position %s: evaluateExit requires Open", p.Symbol)
	}
	var targetHit, stopHit bool
	if p.Direction == pattern.Long {
		targetHit = high.GreaterThanOrEqual(p.ProfitTargetPrice)
		stopHit = low.LessThanOrEqual(p.StopPrice)
	} else {
		targetHit = low.LessThanOrEqual(p.ProfitTargetPrice)
		stopHit = high.GreaterThanOrEqual(p.StopPrice)
	}
	switch {
	case stopHit:
		return true, p.closeWith(p.stopOrder, date, p.StopPrice, barIndex)
	case targetHit:
		return true, p.closeWith(p.profitTargetOrder, date, p.ProfitTargetPrice, barIndex)
	default:
		return false, nil
	}
}

func (p *Position) closeWith(order *Order, date time.Time, price decimal.Decimal, barIndex int) error {
	if err := order.fill(date, price); err != nil {
		return err
	}
	other := p.profitTargetOrder
	if order == p.profitTargetOrder {
		other = p.stopOrder
	}
	other.cancel()

	p.ExitDate = date
	p.ExitPrice = price
	p.ExitKind = order.Kind
	p.ExitBarIndex = barIndex
	p.State = Closed
	return nil
}

// PercentReturn returns the directionally-signed percent return of a
// closed position: positive when the position won.
func (p *Position) PercentReturn() (decimal.Decimal, error) {
	if p.State != Closed {
		return decimal.Decimal{}, errors.Wrap(ErrInvalidTransition, "percent return requires a closed position")
	}
	diff, err := p.ExitPrice.Sub(p.EntryPrice)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if p.Direction == pattern.Short {
		diff, err = diff.Mul(decimal.FromInt(-1, diff.Scale()))
		if err != nil {
			return decimal.Decimal{}, err
		}
	}
	ratio, err := diff.Div(p.EntryPrice, decimal.HalfAwayFromZero)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return ratio.Mul(decimal.FromInt(100, ratio.Scale()))
}

// IsWinning reports whether the exit favored the position's direction
// beyond entry.
func (p *Position) IsWinning() bool {
	if p.State != Closed {
		return false
	}
	if p.Direction == pattern.Long {
		return p.ExitPrice.GreaterThan(p.EntryPrice)
	}
	return p.ExitPrice.LessThan(p.EntryPrice)
}

// RMultiple computes (exit-entry)/(entry-stop) for long, sign-adjusted for
// short, per spec.md §3's R-multiple definition.
func (p *Position) RMultiple() (decimal.Decimal, error) {
	if p.State != Closed {
		return decimal.Decimal{}, errors.Wrap(ErrInvalidTransition, "R-multiple requires a closed position")
	}
	gain, err := p.ExitPrice.Sub(p.EntryPrice)
	if err != nil {
		return decimal.Decimal{}, err
	}
	stopDistance, err := p.EntryPrice.Sub(p.StopPrice)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if p.Direction == pattern.Short {
		gain, err = gain.Mul(decimal.FromInt(-1, gain.Scale()))
		if err != nil {
			return decimal.Decimal{}, err
		}
		stopDistance, err = stopDistance.Mul(decimal.FromInt(-1, stopDistance.Scale()))
		if err != nil {
			return decimal.Decimal{}, err
		}
	}
	return gain.Div(stopDistance.Abs(), decimal.HalfAwayFromZero)
}

// BarsHeld returns the number of bars the position spent open.
func (p *Position) BarsHeld() int {
	if p.State != Closed {
		return 0
	}
	return p.ExitBarIndex - p.EntryBarIndex
}
