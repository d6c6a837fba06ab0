package replay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"double-auction/src/engine"
	"double-auction/src/metrics"
	"double-auction/src/stats"
)

type recordingSink struct {
	trades  []engine.Trade
	history []engine.HistoryEntry
	tobs    []stats.TopOfBook
	vols    []float64
	flushes int
	// pending counts writes since the last flush
	pending  int
	flushErr error
}

func (s *recordingSink) WriteTrade(t engine.Trade) error {
	s.trades = append(s.trades, t)
	s.pending++
	return nil
}

func (s *recordingSink) WriteHistory(h engine.HistoryEntry) error {
	s.history = append(s.history, h)
	s.pending++
	return nil
}

func (s *recordingSink) WriteTopOfBook(tob stats.TopOfBook, vol float64) error {
	s.tobs = append(s.tobs, tob)
	s.vols = append(s.vols, vol)
	s.pending++
	return nil
}

func (s *recordingSink) Flush() error {
	if s.flushErr != nil {
		return s.flushErr
	}
	s.flushes++
	s.pending = 0
	return nil
}

func (s *recordingSink) Close() error { return nil }

func newRunner(window int, checkInvariants bool) (*Runner, *recordingSink) {
	e := engine.NewMatchingEngine(engine.Options{Logger: zerolog.Nop(), CheckInvariants: checkInvariants})
	sink := &recordingSink{}
	return &Runner{
		Engine:        e,
		Tracker:       stats.NewTracker(e.Book(), window),
		Sink:          sink,
		Metrics:       metrics.New(),
		Log:           zerolog.Nop(),
		WriteInterval: 1,
		Prime:         true,
	}, sink
}

const session = `traderID,clientOrderID,timestamp,type,side,price,quantity
1,1,0,SEED,BUY,999990,5
2,1,0,SEED,SELL,1000010,5
3,1,1,ADD,BUY,1000010,2
3,2,1,CANCEL,BUY,0,0
4,1,2,ADD,SELL,999990,1
`

func TestRunnerReplaysSession(t *testing.T) {
	r, sink := newRunner(3, true)

	sum, err := r.Run(context.Background(), strings.NewReader(session))
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Events)
	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, 2, sum.Trades)
	assert.Equal(t, int64(3), sum.Steps)
	assert.Equal(t, 0.0, sum.Volatility)
	require.NotNil(t, sum.TopOfBook)
	assert.Equal(t, stats.TopOfBook{Timestamp: 2, BestBid: 999990, BestAsk: 1000010, BidSize: 4, AskSize: 3}, *sum.TopOfBook)

	require.Len(t, sink.trades, 2)
	assert.Equal(t, int64(1000010), sink.trades[0].Price)
	assert.Equal(t, int64(999990), sink.trades[1].Price, "trades print at the resting price")
	assert.Equal(t, []int64{1, 2}, []int64{sink.trades[0].TradeID, sink.trades[1].TradeID})

	// two seeds and two accepted adds; the failed cancel leaves no trace
	require.Len(t, sink.history, 4)
	for i, h := range sink.history {
		assert.Equal(t, int64(i+1), h.Seq)
		assert.Equal(t, engine.EventAdd, h.Type)
	}

	// one sample per step
	require.Len(t, sink.tobs, 3)
	assert.Equal(t, []int64{0, 1, 2}, []int64{sink.tobs[0].Timestamp, sink.tobs[1].Timestamp, sink.tobs[2].Timestamp})
	assert.Zero(t, sink.pending, "everything flushed on exit")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Metrics.TradesExecuted))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.EventsRejected.WithLabelValues("order_not_found")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Metrics.OrdersInBook))
	assert.Equal(t, 1_000_000.0, testutil.ToFloat64(r.Metrics.MidPrice))
}

func TestRunnerFlushesEveryInterval(t *testing.T) {
	r, sink := newRunner(stats.DefaultWindow, false)
	r.WriteInterval = 2

	var b strings.Builder
	b.WriteString("1,1,0,SEED,BUY,99,1\n2,1,0,SEED,SELL,101,1\n")
	for ts := 1; ts <= 6; ts++ {
		b.WriteString("3," + string(rune('0'+ts)) + "," + string(rune('0'+ts)) + ",ADD,BUY,90,1\n")
	}

	sum, err := r.Run(context.Background(), strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, int64(7), sum.Steps)
	// steps 2, 4 and 6 plus the final flush
	assert.Equal(t, 4, sink.flushes)
	assert.Equal(t, 4.0, testutil.ToFloat64(r.Metrics.Flushes))
}

func TestRunnerRejectsCrossingSeed(t *testing.T) {
	r, _ := newRunner(stats.DefaultWindow, false)

	input := "1,1,0,SEED,BUY,101,1\n2,1,0,SEED,SELL,100,1\n"
	sum, err := r.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, 0, sum.Trades)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.EventsRejected.WithLabelValues("seed_crosses")))
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	r, sink := newRunner(stats.DefaultWindow, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := r.Run(ctx, strings.NewReader(session))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Events)
	assert.Equal(t, 1, sink.flushes)
}

func TestRunnerHaltsOnInvariantViolation(t *testing.T) {
	r, sink := newRunner(stats.DefaultWindow, true)

	_, err := r.Run(context.Background(), strings.NewReader("1,1,0,ADD,SELL,100,5\n"))
	require.NoError(t, err)

	level, ok := r.Engine.Book().Asks.Level(100)
	require.True(t, ok)
	level.Quantity = 1

	sum, err := r.Run(context.Background(), strings.NewReader("2,1,1,ADD,BUY,90,1\n3,1,2,ADD,BUY,91,1\n"))
	require.ErrorIs(t, err, engine.ErrBookInvariant)
	assert.Contains(t, err.Error(), "line 1")
	assert.Equal(t, 1, sum.Events, "processing stops at the first violation")
	assert.ErrorIs(t, r.Engine.Halted(), engine.ErrBookInvariant)
	assert.Empty(t, sink.trades)
}

func TestRunnerReportsFlushFailure(t *testing.T) {
	r, sink := newRunner(stats.DefaultWindow, false)
	sink.flushErr = errors.New("disk full")

	_, err := r.Run(context.Background(), strings.NewReader(session))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRejectReason(t *testing.T) {
	assert.Equal(t, "invalid_price", rejectReason(engine.ErrInvalidPrice))
	assert.Equal(t, "invalid_quantity", rejectReason(engine.ErrInvalidQuantity))
	assert.Equal(t, "duplicate_order", rejectReason(engine.ErrDuplicateOrder))
	assert.Equal(t, "other", rejectReason(errors.New("boom")))
}
