// Package stats tracks top-of-book snapshots and a rolling volatility
// estimate over the mid-price.
package stats

import (
	"math"

	"double-auction/src/engine"
)

const DefaultWindow = 100

// Book is the read side of an order book the tracker samples from.
type Book interface {
	GetBestBid() (price int64, quantity int64, err error)
	GetBestAsk() (price int64, quantity int64, err error)
}

type TopOfBook struct {
	Timestamp int64
	BestBid   int64
	BestAsk   int64
	BidSize   int64
	AskSize   int64
}

// Mid is the real-valued average of the best bid and ask.
func (t TopOfBook) Mid() float64 {
	return (float64(t.BestBid) + float64(t.BestAsk)) / 2.0
}

// Tracker keeps the last capacity mid-prices in a ring buffer.
type Tracker struct {
	book       Book
	samples    []float64
	head       int
	count      int
	mean       float64
	volatility float64
}

func NewTracker(book Book, capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Tracker{
		book:    book,
		samples: make([]float64, capacity),
	}
}

// Snapshot reads the current top of book without touching the window.
func (t *Tracker) Snapshot(timestamp int64) (TopOfBook, error) {
	bid, bidSize, err := t.book.GetBestBid()
	if err != nil {
		return TopOfBook{}, err
	}
	ask, askSize, err := t.book.GetBestAsk()
	if err != nil {
		return TopOfBook{}, err
	}
	return TopOfBook{
		Timestamp: timestamp,
		BestBid:   bid,
		BestAsk:   ask,
		BidSize:   bidSize,
		AskSize:   askSize,
	}, nil
}

// Tick samples the mid-price into the window and refreshes the volatility.
// It fails with engine.ErrEmptyBook unless both sides are quoted.
func (t *Tracker) Tick(timestamp int64) (TopOfBook, float64, error) {
	tob, err := t.Snapshot(timestamp)
	if err != nil {
		return TopOfBook{}, t.volatility, err
	}
	t.push(tob.Mid())
	t.recompute()
	return tob, t.volatility, nil
}

// Prime fills the whole window with the current mid-price.
func (t *Tracker) Prime(timestamp int64) error {
	tob, err := t.Snapshot(timestamp)
	if err != nil {
		return err
	}
	mid := tob.Mid()
	for range len(t.samples) {
		t.push(mid)
	}
	t.recompute()
	return nil
}

func (t *Tracker) push(mid float64) {
	t.samples[t.head] = mid
	t.head = (t.head + 1) % len(t.samples)
	if t.count < len(t.samples) {
		t.count++
	}
}

// recompute uses two passes over the window; the Bessel factor n/(n-1)
// turns the population variance into the sample variance.
func (t *Tracker) recompute() {
	n := t.count
	if n == 0 {
		t.mean, t.volatility = 0, 0
		return
	}

	var sum float64
	for _, v := range t.window() {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range t.window() {
		d := v - mean
		sq += d * d
	}

	t.mean = mean
	if n < 2 {
		t.volatility = 0
		return
	}
	sd := math.Sqrt(sq / float64(n))
	t.volatility = sd * math.Sqrt(float64(n)/float64(n-1))
}

// window returns the filled part of the buffer in arbitrary order.
func (t *Tracker) window() []float64 {
	if t.count < len(t.samples) {
		return t.samples[:t.count]
	}
	return t.samples
}

func (t *Tracker) Volatility() float64 {
	return t.volatility
}

func (t *Tracker) Mean() float64 {
	return t.mean
}

// Samples returns the window oldest first.
func (t *Tracker) Samples() []float64 {
	out := make([]float64, 0, t.count)
	start := 0
	if t.count == len(t.samples) {
		start = t.head
	}
	for i := 0; i < t.count; i++ {
		out = append(out, t.samples[(start+i)%len(t.samples)])
	}
	return out
}

func (t *Tracker) Capacity() int {
	return len(t.samples)
}

var _ Book = (*engine.OrderBook)(nil)
