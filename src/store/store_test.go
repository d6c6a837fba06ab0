package store_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"double-auction/src/engine"
	"double-auction/src/stats"
	"double-auction/src/store"
)

var (
	sampleTrade = engine.Trade{
		TradeID:               1,
		RestingTraderID:       3000,
		RestingClientOrderID:  4,
		RestingTimestamp:      10,
		IncomingTraderID:      2000,
		IncomingClientOrderID: 1,
		IncomingTimestamp:     12,
		Price:                 1_000_010,
		Quantity:              1,
		Side:                  engine.SideBuy,
	}
	sampleHistory = engine.HistoryEntry{
		Seq:           1,
		ExchangeID:    7,
		ClientOrderID: 4,
		TraderID:      3000,
		Timestamp:     10,
		Type:          engine.EventAdd,
		Quantity:      1,
		Side:          engine.SideSell,
		Price:         1_000_010,
	}
	sampleTOB = stats.TopOfBook{Timestamp: 12, BestBid: 999_990, BestAsk: 1_000_020, BidSize: 3, AskSize: 2}
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSinkAppendsAcrossFlushes(t *testing.T) {
	dir := t.TempDir()
	sink, err := store.NewCSVSink(dir, "")
	require.NoError(t, err)

	require.NoError(t, sink.WriteHistory(sampleHistory))
	require.NoError(t, sink.WriteTrade(sampleTrade))
	require.NoError(t, sink.WriteTopOfBook(sampleTOB, 0.5))
	require.NoError(t, sink.Flush())

	second := sampleHistory
	second.Seq, second.Type, second.ExchangeID = 2, engine.EventCancel, 7
	require.NoError(t, sink.WriteHistory(second))
	require.NoError(t, sink.Close())

	orders := readCSV(t, filepath.Join(dir, "orders.csv"))
	require.Len(t, orders, 3, "header written once plus two rows")
	assert.Equal(t, []string{"exID", "orderID", "traderID", "timeStamp", "type", "quantity", "side", "price"}, orders[0])
	assert.Equal(t, []string{"7", "4", "3000", "10", "1", "1", "2", "1000010"}, orders[1])
	assert.Equal(t, "2", orders[2][4])

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, trades, 2)
	assert.Equal(t, []string{"1", "3000", "4", "10", "2000", "1", "12", "1000010", "1", "1"}, trades[1])

	sip := readCSV(t, filepath.Join(dir, "sip.csv"))
	require.Len(t, sip, 2)
	assert.Equal(t, []string{"12", "999990", "1000020", "3", "2", "0.5"}, sip[1])
}

func TestCSVSinkRunIDInFileNames(t *testing.T) {
	dir := t.TempDir()
	runID := uuid.New().String()
	sink, err := store.NewCSVSink(dir, runID)
	require.NoError(t, err)

	orders, trades, sip := sink.Paths()
	assert.Equal(t, filepath.Join(dir, "orders_"+runID+".csv"), orders)
	assert.Equal(t, filepath.Join(dir, "trades_"+runID+".csv"), trades)
	assert.Equal(t, filepath.Join(dir, "sip_"+runID+".csv"), sip)

	// nothing buffered, nothing created
	require.NoError(t, sink.Flush())
	_, err = os.Stat(orders)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPebbleSinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	runID := uuid.New().String()
	sink, err := store.OpenPebbleSink(dir, runID)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.WriteTrade(sampleTrade))
	require.NoError(t, sink.WriteHistory(sampleHistory))
	require.NoError(t, sink.WriteTopOfBook(sampleTOB, 1.25))

	trades, err := sink.Trades(runID)
	require.NoError(t, err)
	assert.Empty(t, trades, "unflushed batch must not be visible")

	require.NoError(t, sink.Flush())

	second := sampleTrade
	second.TradeID = 2
	second.Quantity = 3
	require.NoError(t, sink.WriteTrade(second))
	require.NoError(t, sink.Flush())

	trades, err = sink.Trades(runID)
	require.NoError(t, err)
	assert.Equal(t, []engine.Trade{sampleTrade, second}, trades)

	history, err := sink.History(runID)
	require.NoError(t, err)
	assert.Equal(t, []engine.HistoryEntry{sampleHistory}, history)

	tobs, err := sink.TopOfBook(runID)
	require.NoError(t, err)
	require.Len(t, tobs, 1)
	assert.Equal(t, store.TopOfBookRecord{Seq: 1, Timestamp: 12, BestBid: 999_990, BestAsk: 1_000_020, BidSize: 3, AskSize: 2, Volatility: 1.25}, tobs[0])

	other, err := sink.Trades(uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, other, "runs are isolated by key prefix")
}

type countingSink struct {
	store.Discard
	trades, flushes int
}

func (c *countingSink) WriteTrade(engine.Trade) error {
	c.trades++
	return nil
}

func (c *countingSink) Flush() error {
	c.flushes++
	return nil
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	multi := store.MultiSink{a, b}

	require.NoError(t, multi.WriteTrade(sampleTrade))
	require.NoError(t, multi.WriteHistory(sampleHistory))
	require.NoError(t, multi.Flush())
	require.NoError(t, multi.Close())

	assert.Equal(t, 1, a.trades)
	assert.Equal(t, 1, b.trades)
	assert.Equal(t, 1, a.flushes)
	assert.Equal(t, 1, b.flushes)
}
