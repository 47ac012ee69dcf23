package space

import (
	"fmt"
	"sort"
	"strings"
)

// Entry is one scored candidate in a ResultPool.
type Entry struct {
	Params []float64
	Score  float64
}

// ResultPool is a bounded top-K ranking of scored parameter vectors. Enter
// is cheap and unbounded; Cut sorts, deduplicates and trims back to
// capacity. Insertion order never affects the surviving set.
type ResultPool struct {
	capacity int
	maximize bool
	entries  []Entry
}

// NewResultPool builds a pool keeping the capacity best entries. When
// maximize is false the lowest scores win.
func NewResultPool(capacity int, maximize bool) *ResultPool {
	if capacity < 1 {
		capacity = 1
	}

	return &ResultPool{capacity: capacity, maximize: maximize}
}

// Capacity returns the configured bound.
func (p *ResultPool) Capacity() int {
	return p.capacity
}

// Len returns the current number of entries.
func (p *ResultPool) Len() int {
	return len(p.entries)
}

// Enter adds a scored candidate. The vector is copied.
func (p *ResultPool) Enter(params []float64, score float64) {
	p.entries = append(p.entries, Entry{
		Params: append([]float64(nil), params...),
		Score:  score,
	})
}

// better reports whether score a beats score b under the pool's direction.
func (p *ResultPool) better(a, b float64) bool {
	if p.maximize {
		return a > b
	}

	return a < b
}

// Cut sorts the pool worst to best, drops duplicate vectors keeping each
// vector's best score, and trims to capacity.
func (p *ResultPool) Cut() {
	best := make(map[string]Entry, len(p.entries))
	for _, e := range p.entries {
		key := paramsKey(e.Params)
		if prev, ok := best[key]; !ok || p.better(e.Score, prev.Score) {
			best[key] = e
		}
	}

	p.entries = p.entries[:0]
	for _, e := range best {
		p.entries = append(p.entries, e)
	}

	sort.SliceStable(p.entries, func(i, j int) bool {
		return p.better(p.entries[j].Score, p.entries[i].Score)
	})

	if len(p.entries) > p.capacity {
		p.entries = p.entries[len(p.entries)-p.capacity:]
	}
}

// Entries returns the current entries ranked worst to best. Call Cut first
// for a trimmed, sorted view.
func (p *ResultPool) Entries() []Entry {
	return p.entries
}

// Best returns the highest ranked entry after a Cut. ok is false for an
// empty pool.
func (p *ResultPool) Best() (Entry, bool) {
	if len(p.entries) == 0 {
		return Entry{}, false
	}

	return p.entries[len(p.entries)-1], true
}

func paramsKey(params []float64) string {
	var b strings.Builder
	for i, v := range params {
		if i > 0 {
			b.WriteByte(',')
		}

		fmt.Fprintf(&b, "%g", v)
	}

	return b.String()
}
