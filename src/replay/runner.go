// Package replay feeds a recorded stream of order events through the engine
// and hands the resulting ledgers and top-of-book samples to a sink.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"double-auction/src/engine"
	"double-auction/src/metrics"
	"double-auction/src/stats"
	"double-auction/src/store"
)

type Runner struct {
	Engine  *engine.MatchingEngine
	Tracker *stats.Tracker
	Sink    store.Sink
	Metrics *metrics.Metrics
	Log     zerolog.Logger

	// WriteInterval is the number of steps between sink flushes.
	WriteInterval int64
	// Prime fills the volatility window with the mid-price reached once
	// the seed rows have been applied.
	Prime bool

	lastTrade   int64
	lastHistory int64
	primed      bool
}

type Summary struct {
	Events     int
	Rejected   int
	Trades     int
	Steps      int64
	Volatility float64
	TopOfBook  *stats.TopOfBook
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, engine.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, engine.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, engine.ErrDuplicateOrder):
		return "duplicate_order"
	case errors.Is(err, engine.ErrSeedCrosses):
		return "seed_crosses"
	case errors.Is(err, engine.ErrInvalidEvent):
		return "invalid_event"
	default:
		return "other"
	}
}

// Run processes events until in is exhausted, ctx is cancelled, or the engine
// halts. The sink is flushed before returning in every case.
func (r *Runner) Run(ctx context.Context, in io.Reader) (Summary, error) {
	var sum Summary
	reader := NewEventReader(in)

	interval := r.WriteInterval
	if interval <= 0 {
		interval = 1
	}

	var (
		step    int64
		started bool
	)

	finish := func(runErr error) (Summary, error) {
		if started {
			r.endStep(step, &sum)
		}
		if err := r.flush(); err != nil {
			runErr = errors.Join(runErr, err)
		}
		sum.Trades = r.Engine.Trades().Len()
		sum.Volatility = r.Tracker.Volatility()
		return sum, runErr
	}

	for {
		if err := ctx.Err(); err != nil {
			r.Log.Warn().Err(err).Int("events", sum.Events).Msg("Replay interrupted")
			return finish(err)
		}

		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(err)
		}

		if started && ev.Timestamp != step {
			r.endStep(step, &sum)
			if sum.Steps%interval == 0 {
				if err := r.flush(); err != nil {
					started = false
					return finish(err)
				}
			}
		}
		step, started = ev.Timestamp, true
		sum.Events++

		if !ev.Seed {
			r.primeOnce(ev.Timestamp)
		}

		start := time.Now()
		var result *engine.MatchResult
		if ev.Seed {
			result, err = r.Engine.Seed(ev.OrderEvent)
		} else {
			result, err = r.Engine.ProcessOrder(ev.OrderEvent)
		}
		latency := time.Since(start)

		if err != nil {
			if errors.Is(err, engine.ErrBookInvariant) {
				return finish(fmt.Errorf("line %d: %w", ev.Line, err))
			}
			sum.Rejected++
			r.Metrics.ObserveReject(rejectReason(err))
			r.Log.Warn().
				Err(err).
				Int("line", ev.Line).
				Int64("trader_id", ev.TraderID).
				Int64("client_order_id", ev.ClientOrderID).
				Str("type", ev.Type.String()).
				Msg("Event rejected")
			continue
		}

		r.Metrics.ObserveResult(ev.OrderEvent, result, latency)
		r.Metrics.ObserveBook(r.Engine.Book())
		if err := r.drain(); err != nil {
			return finish(err)
		}

		if result.TopOfBookChanged {
			if tob, err := r.Tracker.Snapshot(ev.Timestamp); err == nil {
				sum.TopOfBook = &tob
			} else {
				sum.TopOfBook = nil
			}
		}
	}

	r.Log.Info().
		Int("events", sum.Events).
		Int("rejected", sum.Rejected).
		Int("trades", r.Engine.Trades().Len()).
		Msg("Replay input exhausted")
	return finish(nil)
}

func (r *Runner) primeOnce(timestamp int64) {
	if !r.Prime || r.primed {
		return
	}
	r.primed = true
	if err := r.Tracker.Prime(timestamp); err != nil {
		r.Log.Warn().Err(err).Msg("Could not prime volatility window, book not quoted on both sides")
		return
	}
	r.Log.Info().
		Float64("mid", r.Tracker.Mean()).
		Int("samples", r.Tracker.Capacity()).
		Msg("Volatility window primed")
}

// endStep samples the tracker once per logical step.
func (r *Runner) endStep(step int64, sum *Summary) {
	sum.Steps++
	tob, vol, err := r.Tracker.Tick(step)
	if err != nil {
		r.Log.Debug().Err(err).Int64("step", step).Msg("Top of book unavailable")
		return
	}
	r.Metrics.ObserveTick(tob.Mid(), vol)
	if err := r.Sink.WriteTopOfBook(tob, vol); err != nil {
		r.Log.Error().Err(err).Int64("step", step).Msg("Failed to write top of book")
	}
}

// drain forwards ledger entries appended since the last call.
func (r *Runner) drain() error {
	for _, t := range r.Engine.Trades().Since(r.lastTrade) {
		if err := r.Sink.WriteTrade(t); err != nil {
			return fmt.Errorf("write trade %d: %w", t.TradeID, err)
		}
		r.lastTrade = t.TradeID
	}
	for _, h := range r.Engine.History().Since(r.lastHistory) {
		if err := r.Sink.WriteHistory(h); err != nil {
			return fmt.Errorf("write history %d: %w", h.Seq, err)
		}
		r.lastHistory = h.Seq
	}
	return nil
}

func (r *Runner) flush() error {
	if err := r.drain(); err != nil {
		return err
	}
	if err := r.Sink.Flush(); err != nil {
		return fmt.Errorf("flush sink: %w", err)
	}
	r.Metrics.Flushes.Inc()
	r.Log.Debug().
		Int64("trades", r.lastTrade).
		Int64("history", r.lastHistory).
		Msg("Sink flushed")
	return nil
}
