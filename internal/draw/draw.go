// Package draw picks catalog items at random, weighted by their probability.
package draw

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"

	"eggbot/internal/catalog"
)

// Engine draws from a fixed catalog. It is safe for concurrent use.
type Engine struct {
	weights []catalog.Weighted
	float64 func() float64
}

// New uses the process-wide math/rand/v2 source.
func New(c *catalog.Catalog) *Engine {
	return &Engine{weights: c.Weights(), float64: rand.Float64}
}

// NewSeeded gives a reproducible sequence of draws for a given seed.
func NewSeeded(c *catalog.Catalog, seed uint64) *Engine {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var mu sync.Mutex
	return &Engine{
		weights: c.Weights(),
		float64: func() float64 {
			mu.Lock()
			defer mu.Unlock()
			return r.Float64()
		},
	}
}

// NewSeed reads a seed from crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Draw scans the catalog in order, subtracting each weight from a uniform
// value in [0, total). The item at which the remainder drops to <= 0 wins;
// float drift that exhausts the scan falls back to the last item.
func (e *Engine) Draw() catalog.Item {
	total := 0.0
	for _, w := range e.weights {
		total += w.Probability
	}

	remainder := e.float64() * total
	for _, w := range e.weights {
		remainder -= w.Probability
		if remainder <= 0 {
			return w.Item
		}
	}
	return e.weights[len(e.weights)-1].Item
}
