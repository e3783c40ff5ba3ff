// Package pattern implements the compiled boolean pattern evaluator of
// spec.md's C4: a closure built once per pattern over bar[offset].field
// comparisons, grounded on original_source/libs/timeserieslib/PalStrategy.h's
// expression tree shape (GreaterThanExpr/AndExpr over PatternExpression leaves).
//
// The source pattern DSL/AST is an external collaborator per spec.md §1 (the
// core receives a compiled evaluator); this package also offers a minimal
// tree builder (NewComparison/NewAnd/Compile) so the core can be exercised
// without a separate parser.
package pattern

import (
	"github.com/palvalidator/core/decimal"
	"github.com/palvalidator/core/timeseries"
	"github.com/pkg/errors"
)

// Direction is the side a pattern trades when it fires.
type Direction int

const (
	Long Direction = iota
	Short
)

// Field selects which bar[offset] price/volume value a leaf resolves to.
type Field int

const (
	Open Field = iota
	High
	Low
	Close
	Volume
)

func (f Field) resolve(b timeseries.Bar) decimal.Decimal {
	switch f {
	case Open:
		return b.Open
	case High:
		return b.High
	case Low:
		return b.Low
	case Close:
		return b.Close
	case Volume:
		return b.Volume
	default:
		return decimal.Decimal{}
	}
}

// Operand is a leaf reference to bar[offset].field.
type Operand struct {
	Offset int
	Field  Field
}

// Node is a compiled boolean expression node.
type Node interface {
	// maxOffset returns the largest bar offset referenced anywhere in the subtree.
	maxOffset() int
	eval(sec *timeseries.Security, it timeseries.RandomAccessIterator) (bool, error)
}

type comparisonNode struct {
	left, right Operand
}

// NewComparison builds a "left > right" leaf node over two bar-offset operands.
func NewComparison(left, right Operand) Node {
	return comparisonNode{left: left, right: right}
}

func (n comparisonNode) maxOffset() int {
	m := n.left.Offset
	if n.right.Offset > m {
		m = n.right.Offset
	}
	return m
}

func (n comparisonNode) eval(sec *timeseries.Security, it timeseries.RandomAccessIterator) (bool, error) {
	lbar, err := it.Offset(n.left.Offset)
	if err != nil {
		return false, err
	}
	rbar, err := it.Offset(n.right.Offset)
	if err != nil {
		return false, err
	}
	lv := n.left.Field.resolve(lbar)
	rv := n.right.Field.resolve(rbar)
	return lv.GreaterThan(rv), nil
}

type andNode struct {
	a, b Node
}

// NewAnd builds a logical-AND node over two subexpressions.
func NewAnd(a, b Node) Node {
	return andNode{a: a, b: b}
}

func (n andNode) maxOffset() int {
	ma, mb := n.a.maxOffset(), n.b.maxOffset()
	if ma > mb {
		return ma
	}
	return mb
}

func (n andNode) eval(sec *timeseries.Security, it timeseries.RandomAccessIterator) (bool, error) {
	left, err := n.a.eval(sec, it)
	if err != nil {
		return false, err
	}
	if !left {
		return false, nil
	}
	return n.b.eval(sec, it)
}

// ErrInsufficientHistory is returned when the evaluator is invoked at a bar
// that does not have max-bars-back predecessors available.
var ErrInsufficientHistory = errors.New("pattern: insufficient bar history")

// Pattern is a compiled pattern: its evaluator closure plus trading
// parameters (direction, profit target / stop-loss percentages, and the
// maximum offset it references).
type Pattern struct {
	Name           string
	Root           Node
	Direction      Direction
	ProfitTargetPct decimal.Decimal
	StopLossPct    decimal.Decimal
	MaxBarsBack    int
}

// Compile builds a Pattern from a root expression node, deriving
// MaxBarsBack from the tree.
func Compile(name string, root Node, direction Direction, profitTargetPct, stopLossPct decimal.Decimal) *Pattern {
	return &Pattern{
		Name:            name,
		Root:            root,
		Direction:       direction,
		ProfitTargetPct: profitTargetPct,
		StopLossPct:     stopLossPct,
		MaxBarsBack:     root.maxOffset(),
	}
}

// Eval evaluates the pattern at the bar anchored by it. The caller (the
// backtester) must guard that it.Index() has at least MaxBarsBack
// predecessors available; Eval itself also fails safely via
// ErrInsufficientHistory if not.
func (p *Pattern) Eval(sec *timeseries.Security, it timeseries.RandomAccessIterator) (bool, error) {
	if !it.HasOffset(p.MaxBarsBack) {
		return false, errors.Wrapf(ErrInsufficientHistory, "pattern %s needs %d bars back", p.Name, p.MaxBarsBack)
	}
	return p.Root.eval(sec, it)
}

// CanFireAt reports whether the bar at index barsProcessed-1 (0-based
// count of bars processed so far) has enough history for this pattern,
// per spec.md §4.8: "max-bars-back must be less than the security's
// processed-bar count before it can fire."
func (p *Pattern) CanFireAt(barsProcessed int) bool {
	return p.MaxBarsBack < barsProcessed
}
