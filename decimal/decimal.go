// Package decimal implements exact base-10 fixed-point arithmetic with a
// per-value scale (number of fractional digits), modeled on the COBOL-style
// fixed-point type used by the original validator (decimal.h: int64 mantissa,
// scale parameter, overflow is a hard failure rather than silent wraparound).
//
// Go has no compile-time integer type parameters comparable to the C++
// template<int Prec> used by the original, so scale is carried as a runtime
// field on Decimal rather than baked into the type. Mixed-precision binary
// operations promote to the larger scale, matching the original's DEC_TYPE_LEVEL=2
// "automatic rounding when different precision is mixed" policy.
package decimal

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// RoundingPolicy selects how a value is rounded to its target scale.
type RoundingPolicy int

const (
	// HalfAwayFromZero is the default policy: .5 rounds away from zero.
	HalfAwayFromZero RoundingPolicy = iota
	HalfEven
	HalfUp
	HalfDown
	Floor
	Ceiling
	Truncate
)

// ErrOverflow is returned when an operation's result cannot be represented
// in the internal int64 mantissa.
var ErrOverflow = errors.New("decimal: overflow")

// ErrDivideByZero is returned by Div and Mod when the divisor is zero.
var ErrDivideByZero = errors.New("decimal: division by zero")

// ErrParse is returned when a string cannot be parsed as a decimal.
var ErrParse = errors.New("decimal: parse failure")

var pow10 = [...]int64{
	1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000,
	1000000000, 10000000000, 100000000000, 1000000000000,
	10000000000000, 100000000000000, 1000000000000000,
	10000000000000000, 100000000000000000,
}

func scaleFactor(scale uint8) (int64, error) {
	if int(scale) >= len(pow10) {
		return 0, errors.Wrapf(ErrOverflow, "scale %d out of range", scale)
	}
	return pow10[scale], nil
}

// Decimal is a fixed-point value: mantissa / 10^scale.
type Decimal struct {
	mantissa int64
	scale    uint8
}

// New constructs a Decimal from an integer mantissa and scale.
func New(mantissa int64, scale uint8) Decimal {
	return Decimal{mantissa: mantissa, scale: scale}
}

// Zero returns the zero value at the given scale.
func Zero(scale uint8) Decimal { return Decimal{scale: scale} }

// Scale returns the number of fractional digits this value is carried at.
func (d Decimal) Scale() uint8 { return d.scale }

// Mantissa returns the raw scaled integer representation.
func (d Decimal) Mantissa() int64 { return d.mantissa }

// Parse reads a decimal string losslessly into scale P, e.g. "123.45" at
// scale 2 becomes mantissa 12345. Fails on malformed input or when the
// string carries more fractional digits than P (it would not be lossless).
func Parse(s string, scale uint8) (Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decimal{}, errors.Wrap(ErrParse, "empty string")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return Decimal{}, errors.Wrap(ErrParse, "empty string")
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return Decimal{}, errors.Wrapf(ErrParse, "invalid character %q in %q", r, s)
		}
	}
	if len(fracPart) > int(scale) {
		return Decimal{}, errors.Wrapf(ErrParse, "value %q has more than %d fractional digits", s, scale)
	}
	fracPart = fracPart + strings.Repeat("0", int(scale)-len(fracPart))

	intVal, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Decimal{}, errors.Wrapf(ErrParse, "invalid integer part %q", intPart)
	}
	factor, err := scaleFactor(scale)
	if err != nil {
		return Decimal{}, err
	}
	scaledInt, ok := mulOverflow(intVal, factor)
	if !ok {
		return Decimal{}, ErrOverflow
	}

	var fracVal int64
	if fracPart != "" {
		fracVal, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return Decimal{}, errors.Wrapf(ErrParse, "invalid fractional part %q", fracPart)
		}
	}

	mantissa, ok := addOverflow(scaledInt, fracVal)
	if !ok {
		return Decimal{}, ErrOverflow
	}
	if neg {
		mantissa = -mantissa
	}
	return Decimal{mantissa: mantissa, scale: scale}, nil
}

// MustParse is Parse but panics on error; intended for literal test fixtures.
func MustParse(s string, scale uint8) Decimal {
	d, err := Parse(s, scale)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats the value losslessly, e.g. mantissa=12345 scale=2 -> "123.45".
func (d Decimal) String() string {
	neg := d.mantissa < 0
	m := d.mantissa
	if neg {
		m = -m
	}
	factor, _ := scaleFactor(d.scale)
	intPart := m / factor
	fracPart := m % factor
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatInt(intPart, 10))
	if d.scale > 0 {
		b.WriteByte('.')
		fracStr := strconv.FormatInt(fracPart, 10)
		b.WriteString(strings.Repeat("0", int(d.scale)-len(fracStr)))
		b.WriteString(fracStr)
	}
	return b.String()
}

func mulOverflow(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a {
		return 0, false
	}
	return r, true
}

func addOverflow(a, b int64) (int64, bool) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, false
	}
	return r, true
}

func subOverflow(a, b int64) (int64, bool) {
	return addOverflow(a, -b)
}

// rescale returns this value's mantissa at target scale, via the given
// rounding policy when target < d.scale.
func (d Decimal) rescaleTo(target uint8, policy RoundingPolicy) (int64, error) {
	if target == d.scale {
		return d.mantissa, nil
	}
	if target > d.scale {
		factor, err := scaleFactor(target - d.scale)
		if err != nil {
			return 0, err
		}
		m, ok := mulOverflow(d.mantissa, factor)
		if !ok {
			return 0, ErrOverflow
		}
		return m, nil
	}
	drop := d.scale - target
	factor, err := scaleFactor(drop)
	if err != nil {
		return 0, err
	}
	return applyRounding(d.mantissa, factor, policy), nil
}

func applyRounding(m, factor int64, policy RoundingPolicy) int64 {
	neg := m < 0
	a := m
	if neg {
		a = -a
	}
	q := a / factor
	r := a % factor
	switch policy {
	case Truncate:
		// keep q
	case Floor:
		if neg && r != 0 {
			q++
		}
	case Ceiling:
		if !neg && r != 0 {
			q++
		}
	case HalfUp:
		if 2*r >= factor {
			q++
		}
	case HalfDown:
		if 2*r > factor {
			q++
		}
	case HalfEven:
		if 2*r > factor || (2*r == factor && q%2 == 1) {
			q++
		}
	default: // HalfAwayFromZero
		if 2*r >= factor {
			q++
		}
	}
	if neg {
		return -q
	}
	return q
}

// ConvertScale converts d to a new scale, rounding with policy if narrowing.
func (d Decimal) ConvertScale(target uint8, policy RoundingPolicy) (Decimal, error) {
	m, err := d.rescaleTo(target, policy)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{mantissa: m, scale: target}, nil
}

// commonScale picks the larger scale of the two operands for promotion.
func commonScale(a, b Decimal) uint8 {
	if a.scale > b.scale {
		return a.scale
	}
	return b.scale
}

// Add returns a+b, exact, promoted to the larger of the two scales.
func (a Decimal) Add(b Decimal) (Decimal, error) {
	scale := commonScale(a, b)
	am, err := a.rescaleTo(scale, HalfAwayFromZero)
	if err != nil {
		return Decimal{}, err
	}
	bm, err := b.rescaleTo(scale, HalfAwayFromZero)
	if err != nil {
		return Decimal{}, err
	}
	r, ok := addOverflow(am, bm)
	if !ok {
		return Decimal{}, ErrOverflow
	}
	return Decimal{mantissa: r, scale: scale}, nil
}

// Sub returns a-b, exact, promoted to the larger of the two scales.
func (a Decimal) Sub(b Decimal) (Decimal, error) {
	scale := commonScale(a, b)
	am, err := a.rescaleTo(scale, HalfAwayFromZero)
	if err != nil {
		return Decimal{}, err
	}
	bm, err := b.rescaleTo(scale, HalfAwayFromZero)
	if err != nil {
		return Decimal{}, err
	}
	r, ok := subOverflow(am, bm)
	if !ok {
		return Decimal{}, ErrOverflow
	}
	return Decimal{mantissa: r, scale: scale}, nil
}

// Mul returns a*b at the larger of the two scales, rounding half away from
// zero; the product is exact only when it fits that scale (0.15*0.15 at
// scale 2 gives 0.02).
func (a Decimal) Mul(b Decimal) (Decimal, error) {
	scale := commonScale(a, b)
	factor, err := scaleFactor(scale)
	if err != nil {
		return Decimal{}, err
	}
	// a.mantissa/10^a.scale * b.mantissa/10^b.scale = result/10^scale
	// result = a.mantissa*b.mantissa / 10^(a.scale+b.scale-scale)
	num, ok := mulOverflow(a.mantissa, b.mantissa)
	if !ok {
		return Decimal{}, ErrOverflow
	}
	divScale := a.scale + b.scale - scale
	divFactor, err := scaleFactor(divScale)
	if err != nil {
		return Decimal{}, err
	}
	r := applyRounding(num, divFactor, HalfAwayFromZero)
	_ = factor
	return Decimal{mantissa: r, scale: scale}, nil
}

// Div returns a/b rounded to the larger of the two operands' scales using
// the given rounding policy. Fails on division by zero.
func (a Decimal) Div(b Decimal, policy RoundingPolicy) (Decimal, error) {
	if b.mantissa == 0 {
		return Decimal{}, ErrDivideByZero
	}
	scale := commonScale(a, b)
	factor, err := scaleFactor(scale)
	if err != nil {
		return Decimal{}, err
	}
	// result = (a.mantissa/10^a.scale) / (b.mantissa/10^b.scale) * 10^scale
	//        = a.mantissa * 10^(scale+b.scale-a.scale) / b.mantissa
	shift := int(scale) + int(b.scale) - int(a.scale)
	num := a.mantissa
	if shift > 0 {
		mul, err := scaleFactor(uint8(shift))
		if err != nil {
			return Decimal{}, err
		}
		var ok bool
		num, ok = mulOverflow(num, mul)
		if !ok {
			return Decimal{}, ErrOverflow
		}
	} else if shift < 0 {
		div, err := scaleFactor(uint8(-shift))
		if err != nil {
			return Decimal{}, err
		}
		num = applyRounding(num, div, Truncate)
	}
	q := divRound(num, b.mantissa, policy)
	_ = factor
	return Decimal{mantissa: q, scale: scale}, nil
}

func divRound(num, den int64, policy RoundingPolicy) int64 {
	neg := (num < 0) != (den < 0)
	an, ad := num, den
	if an < 0 {
		an = -an
	}
	if ad < 0 {
		ad = -ad
	}
	q := an / ad
	r := an % ad
	round := func() bool {
		switch policy {
		case Truncate:
			return false
		case Floor:
			return neg && r != 0
		case Ceiling:
			return !neg && r != 0
		case HalfUp:
			return 2*r >= ad
		case HalfDown:
			return 2*r > ad
		case HalfEven:
			return 2*r > ad || (2*r == ad && q%2 == 1)
		default:
			return 2*r >= ad
		}
	}
	if round() {
		q++
	}
	if neg {
		return -q
	}
	return q
}

// Mod returns a % b at the larger of the two scales. Fails on division by zero.
func (a Decimal) Mod(b Decimal) (Decimal, error) {
	if b.mantissa == 0 {
		return Decimal{}, ErrDivideByZero
	}
	scale := commonScale(a, b)
	am, err := a.rescaleTo(scale, HalfAwayFromZero)
	if err != nil {
		return Decimal{}, err
	}
	bm, err := b.rescaleTo(scale, HalfAwayFromZero)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{mantissa: am % bm, scale: scale}, nil
}

// Abs returns the absolute value.
func (d Decimal) Abs() Decimal {
	if d.mantissa < 0 {
		return Decimal{mantissa: -d.mantissa, scale: d.scale}
	}
	return d
}

// Sign returns -1, 0, or 1.
func (d Decimal) Sign() int {
	switch {
	case d.mantissa < 0:
		return -1
	case d.mantissa > 0:
		return 1
	default:
		return 0
	}
}

// Floor returns the largest integral value <= d, at the same scale.
func (d Decimal) Floor() Decimal {
	factor, _ := scaleFactor(d.scale)
	m := applyRounding(d.mantissa, factor, Floor) * factor
	return Decimal{mantissa: m, scale: d.scale}
}

// Ceil returns the smallest integral value >= d, at the same scale.
func (d Decimal) Ceil() Decimal {
	factor, _ := scaleFactor(d.scale)
	m := applyRounding(d.mantissa, factor, Ceiling) * factor
	return Decimal{mantissa: m, scale: d.scale}
}

// Trunc truncates toward zero, at the same scale.
func (d Decimal) Trunc() Decimal {
	factor, _ := scaleFactor(d.scale)
	m := applyRounding(d.mantissa, factor, Truncate) * factor
	return Decimal{mantissa: m, scale: d.scale}
}

// Round rounds to the same scale using policy (a no-op unless used to
// normalize -0 or similar); primarily useful via ConvertScale for narrowing.
func (d Decimal) Round(policy RoundingPolicy) Decimal {
	r, _ := d.ConvertScale(d.scale, policy)
	return r
}

// AsDouble converts to float64. Lossy for scales beyond float64 precision.
func (d Decimal) AsDouble() float64 {
	factor, _ := scaleFactor(d.scale)
	return float64(d.mantissa) / float64(factor)
}

// AsInteger returns the integer part after rounding with policy.
func (d Decimal) AsInteger(policy RoundingPolicy) int64 {
	factor, _ := scaleFactor(d.scale)
	return applyRounding(d.mantissa, factor, policy)
}

// FromFloat constructs a Decimal at the given scale from a float64. Lossy;
// intended for test fixtures and synthetic-series construction, not for
// loading priced data (use Parse for that).
func FromFloat(f float64, scale uint8) Decimal {
	factor, _ := scaleFactor(scale)
	return Decimal{mantissa: int64(math.Round(f * float64(factor))), scale: scale}
}

// FromInt constructs an integral Decimal at the given scale.
func FromInt(i int64, scale uint8) Decimal {
	factor, _ := scaleFactor(scale)
	return Decimal{mantissa: i * factor, scale: scale}
}

// Cmp returns -1, 0, or 1 comparing a to b after promoting to a common scale.
func (a Decimal) Cmp(b Decimal) int {
	scale := commonScale(a, b)
	am, _ := a.rescaleTo(scale, HalfAwayFromZero)
	bm, _ := b.rescaleTo(scale, HalfAwayFromZero)
	switch {
	case am < bm:
		return -1
	case am > bm:
		return 1
	default:
		return 0
	}
}

func (a Decimal) GreaterThan(b Decimal) bool        { return a.Cmp(b) > 0 }
func (a Decimal) GreaterThanOrEqual(b Decimal) bool { return a.Cmp(b) >= 0 }
func (a Decimal) LessThan(b Decimal) bool           { return a.Cmp(b) < 0 }
func (a Decimal) LessThanOrEqual(b Decimal) bool    { return a.Cmp(b) <= 0 }
func (a Decimal) Equal(b Decimal) bool              { return a.Cmp(b) == 0 }
func (a Decimal) IsZero() bool                      { return a.mantissa == 0 }
func (a Decimal) IsPositive() bool                  { return a.mantissa > 0 }
func (a Decimal) IsNegative() bool                  { return a.mantissa < 0 }

// RoundToTick rounds price to the nearest multiple of tick using the formula
// price - (price mod tick) + (if (price mod tick) < tick/2 then 0 else tick).
// tickHalf must equal tick/2 (callers cache it, per Security's tick/2 cache).
func RoundToTick(price, tick, tickHalf Decimal) (Decimal, error) {
	if tick.mantissa == 0 {
		return Decimal{}, errors.New("decimal: tick must be non-zero")
	}
	rem, err := price.Mod(tick)
	if err != nil {
		return Decimal{}, err
	}
	if rem.IsNegative() {
		// Normalize remainder into [0, tick) the way COBOL fixed-point mod does for
		// positive ticks on positive prices; prices are always > 0 per the Bar
		// invariant, so this only guards pathological callers.
		added, err := rem.Add(tick)
		if err != nil {
			return Decimal{}, err
		}
		rem = added
	}
	base, err := price.Sub(rem)
	if err != nil {
		return Decimal{}, err
	}
	if rem.LessThan(tickHalf) {
		return base, nil
	}
	return base.Add(tick)
}

// GoString supports %#v debugging output.
func (d Decimal) GoString() string {
	return fmt.Sprintf("decimal.New(%d, %d)", d.mantissa, d.scale)
}
