package feed

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff produces exponentially growing reconnect delays with up to 25%
// jitter, capped at Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     bool

	mu   sync.Mutex
	next time.Duration
	rnd  *rand.Rand
}

func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = 1 * time.Second
	}
	if max < initial {
		max = initial
	}
	return &Backoff{
		Initial:    initial,
		Max:        max,
		Multiplier: 2.0,
		Jitter:     true,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.next <= 0 {
		b.next = b.Initial
	}
	d := b.next

	grown := time.Duration(float64(b.next) * b.Multiplier)
	if grown > b.Max || grown <= 0 {
		grown = b.Max
	}
	b.next = grown

	if b.Jitter && d >= 4 {
		d += time.Duration(b.rnd.Int63n(int64(d / 4)))
	}
	return d
}

// Reset starts the sequence over; called after a successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.next = 0
	b.mu.Unlock()
}
