package timeseries

import "github.com/pkg/errors"

// Portfolio maps symbol to Security. Duplicate-symbol additions fail.
type Portfolio struct {
	securities map[string]*Security
	order      []string
}

// NewPortfolio constructs an empty portfolio.
func NewPortfolio() *Portfolio {
	return &Portfolio{securities: make(map[string]*Security)}
}

// AddSecurity registers a security under its symbol. Fails if the symbol is
// already present.
func (p *Portfolio) AddSecurity(sec *Security) error {
	if _, exists := p.securities[sec.Symbol]; exists {
		return errors.Wrapf(ErrContractViolation, "portfolio: symbol %s already present", sec.Symbol)
	}
	p.securities[sec.Symbol] = sec
	p.order = append(p.order, sec.Symbol)
	return nil
}

// Security returns the security for symbol, or nil if absent.
func (p *Portfolio) Security(symbol string) *Security {
	return p.securities[symbol]
}

// Symbols returns the portfolio's symbols in insertion order.
func (p *Portfolio) Symbols() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Securities returns the portfolio's securities in insertion order.
func (p *Portfolio) Securities() []*Security {
	out := make([]*Security, 0, len(p.order))
	for _, sym := range p.order {
		out = append(out, p.securities[sym])
	}
	return out
}

// Len returns the number of securities held.
func (p *Portfolio) Len() int { return len(p.order) }

// Clone returns a portfolio holding clones of every security, independently
// mutable but sharing each security's underlying series pointer — one per
// Monte Carlo worker, per spec.md §5.
func (p *Portfolio) Clone() *Portfolio {
	clone := NewPortfolio()
	for _, sym := range p.order {
		sec := p.securities[sym].Clone()
		clone.securities[sym] = sec
		clone.order = append(clone.order, sym)
	}
	return clone
}
