// Package broker implements the order/position ledger of spec.md's C7: a
// pending-order queue, a per-symbol position state machine (Flat →
// PendingOpen → Open → Closed, with optional pyramiding), and the derived
// closed-trade statistics consumed by the permutation policies (C9).
// Grounded on original_source/libs/timeserieslib/BackTesterStrategy.h and
// PalStrategy.h's position/order bookkeeping.
package broker

import (
	"time"

	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/pattern"
	"github.com/pkg/errors"
)

// OrderKind tags the three order variants the ledger issues.
type OrderKind int

const (
	MarketOnOpen OrderKind = iota
	LimitExit
	StopExit
)

func (k OrderKind) String() string {
	switch k {
	case MarketOnOpen:
		return "MarketOnOpen"
	case LimitExit:
		return "LimitExit"
	case StopExit:
		return "StopExit"
	default:
		return "Unknown"
	}
}

// OrderState is the lifecycle of an Order.
type OrderState int

const (
	OrderPending OrderState = iota
	OrderFilled
	OrderCanceled
)

// Order is a single pending/filled/canceled instruction. Exit orders
// (LimitExit, StopExit) carry a trigger price; MarketOnOpen orders fill at
// whatever the next bar's open is and so carry a zero TriggerPrice until
// filled, at which point FillPrice records the realized price.
type Order struct {
	Kind         OrderKind
	Symbol       string
	Volume       decimal.Decimal
	TriggerDate  time.Time
	TriggerPrice decimal.Decimal
	Side         pattern.Direction
	State        OrderState
	FillDate     time.Time
	FillPrice    decimal.Decimal
}

func newOrder(kind OrderKind, symbol string, volume decimal.Decimal, triggerDate time.Time, triggerPrice decimal.Decimal, side pattern.Direction) *Order {
	return &Order{
		Kind:         kind,
		Symbol:       symbol,
		Volume:       volume,
		TriggerDate:  triggerDate,
		TriggerPrice: triggerPrice,
		Side:         side,
		State:        OrderPending,
	}
}

func (o *Order) fill(date time.Time, price decimal.Decimal) error {
	if o.State != OrderPending {
		return errors.Errorf("order: cannot fill order in state %d", o.State)
	}
	o.State = OrderFilled
	o.FillDate = date
	o.FillPrice = price
	return nil
}

func (o *Order) cancel() {
	if o.State == OrderPending {
		o.State = OrderCanceled
	}
}
