// Package store externalizes the engine's ledgers and top-of-book samples.
// Sinks only ever receive copies; nothing here mutates engine state.
package store

import (
	"errors"

	"double-auction/src/engine"
	"double-auction/src/stats"
)

type Sink interface {
	WriteTrade(trade engine.Trade) error
	WriteHistory(entry engine.HistoryEntry) error
	WriteTopOfBook(tob stats.TopOfBook, volatility float64) error
	// Flush persists everything written since the previous flush.
	Flush() error
	Close() error
}

type TopOfBookRecord struct {
	Seq        int64   `json:"seq"`
	Timestamp  int64   `json:"timestamp"`
	BestBid    int64   `json:"best_bid"`
	BestAsk    int64   `json:"best_ask"`
	BidSize    int64   `json:"bid_size"`
	AskSize    int64   `json:"ask_size"`
	Volatility float64 `json:"volatility"`
}

// MultiSink fans every call out to all of its sinks.
type MultiSink []Sink

func (m MultiSink) WriteTrade(trade engine.Trade) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteTrade(trade))
	}
	return errors.Join(errs...)
}

func (m MultiSink) WriteHistory(entry engine.HistoryEntry) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteHistory(entry))
	}
	return errors.Join(errs...)
}

func (m MultiSink) WriteTopOfBook(tob stats.TopOfBook, volatility float64) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteTopOfBook(tob, volatility))
	}
	return errors.Join(errs...)
}

func (m MultiSink) Flush() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Discard drops everything.
type Discard struct{}

func (Discard) WriteTrade(engine.Trade) error                 { return nil }
func (Discard) WriteHistory(engine.HistoryEntry) error        { return nil }
func (Discard) WriteTopOfBook(stats.TopOfBook, float64) error { return nil }
func (Discard) Flush() error                                  { return nil }
func (Discard) Close() error                                  { return nil }
