package synthetic

import (
	"math/rand"

	"github.com/palvalidator/core/timeseries"
)

// Cache draws synthetic securities from one source Security for a single
// worker goroutine. Each draw returns a new shallow copy of the source
// Security (via WithSeries) carrying the freshly built series; the source
// Security is left unchanged, and no Security value is reused across draws.
type Cache struct {
	base *timeseries.Security
	rng  *rand.Rand
}

// NewCache creates a cache bound to a single source security and RNG. A
// Cache is not safe for concurrent use; the Monte Carlo executor creates
// one Cache per worker, each seeded independently.
func NewCache(base *timeseries.Security, rng *rand.Rand) *Cache {
	return &Cache{base: base, rng: rng}
}

// NextIID draws a fresh independent-shuffle synthetic security.
func (c *Cache) NextIID() (*timeseries.Security, error) {
	syn, err := BuildIID(c.base.Series, c.base.Tick, c.base.TickHalf(), c.rng)
	if err != nil {
		return nil, err
	}
	return c.base.WithSeries(syn), nil
}

// NextN0PairedDay draws a fresh paired-day synthetic security.
func (c *Cache) NextN0PairedDay() (*timeseries.Security, error) {
	syn, err := BuildN0PairedDay(c.base.Series, c.base.Tick, c.base.TickHalf(), c.rng)
	if err != nil {
		return nil, err
	}
	return c.base.WithSeries(syn), nil
}
