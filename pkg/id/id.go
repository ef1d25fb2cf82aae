// Package id generates time-sortable order identifiers. Order-history
// records and journal rows are keyed by these, so sorting by ID is sorting
// by fill time.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var gen = newGenerator()

type generator struct {
	mu   sync.Mutex
	mono io.Reader
}

func newGenerator() *generator {
	// Seed from crypto/rand so IDs are unpredictable across restarts.
	var seed int64
	if err := binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed); err != nil || seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &generator{mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

func (g *generator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UTC()
	u, err := ulid.New(ulid.Timestamp(now), g.mono)
	if err != nil {
		// The monotonic sequence can overflow inside a single millisecond
		// burst. Advancing the timestamp restarts it; an order must never go
		// unrecorded for want of an ID.
		u = ulid.MustNew(ulid.Timestamp(now.Add(time.Millisecond)), g.mono)
	}
	return u.String()
}

// New returns a ULID string. IDs generated within the same millisecond stay
// lexicographically increasing.
func New() string {
	return gen.next()
}
