package postgres

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDGenerator issues entry and event identifiers. IDs from one generator
// are strictly increasing, so ledger listings ordered by id follow creation
// order even within the same millisecond.
type ULIDGenerator struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

// NewULIDGenerator creates a ULIDGenerator backed by the wall clock.
func NewULIDGenerator() *ULIDGenerator {
	return newULIDGenerator(time.Now)
}

func newULIDGenerator(now func() time.Time) *ULIDGenerator {
	return &ULIDGenerator{
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate returns the next ULID.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}
