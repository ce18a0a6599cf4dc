package store

import (
	"errors"
	"math"
)

// ErrIDSpaceExhausted is returned when the allocator cannot issue another id.
var ErrIDSpaceExhausted = errors.New("store: identifier space exhausted")

// MaxID is the largest identifier the allocator issues. SQL backends store ids
// and counters as signed BIGINT, so the range stops at math.MaxInt64.
const MaxID = math.MaxInt64

// Allocator issues strictly increasing identifiers. The zero value has issued
// nothing; the first id is 1.
type Allocator struct {
	last uint64
}

// Next advances the allocator and returns the new identifier.
func (a *Allocator) Next() (uint64, error) {
	if a.last >= MaxID {
		return 0, ErrIDSpaceExhausted
	}
	a.last++
	return a.last, nil
}

// Last returns the most recently issued identifier.
func (a Allocator) Last() uint64 { return a.last }

// Observe raises the allocator to at least id so a persisted record id is
// never issued again.
func (a *Allocator) Observe(id uint64) {
	if id > a.last {
		a.last = id
	}
}
