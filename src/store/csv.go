package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"double-auction/src/engine"
	"double-auction/src/stats"
)

var (
	historyHeader = []string{"exID", "orderID", "traderID", "timeStamp", "type", "quantity", "side", "price"}
	tradeHeader   = []string{"tradeID", "restingTraderID", "restingOrderID", "restingTimeStamp", "incomingTraderID", "incomingOrderID", "incomingTimeStamp", "price", "quantity", "side"}
	sipHeader     = []string{"timeStamp", "bestBid", "bestAsk", "bidSize", "askSize", "volatility"}
)

// csvFile accumulates rows in memory and appends them to path on flush.
type csvFile struct {
	path   string
	header []string
	buf    bytes.Buffer
	w      *csv.Writer
}

func newCSVFile(path string, header []string) *csvFile {
	f := &csvFile{path: path, header: header}
	f.w = csv.NewWriter(&f.buf)
	return f
}

func (f *csvFile) write(row []string) error {
	return f.w.Write(row)
}

func (f *csvFile) flush() error {
	f.w.Flush()
	if err := f.w.Error(); err != nil {
		return err
	}
	if f.buf.Len() == 0 {
		return nil
	}

	_, statErr := os.Stat(f.path)
	created := errors.Is(statErr, os.ErrNotExist)

	out, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer out.Close()

	if created {
		hw := csv.NewWriter(out)
		if err := hw.Write(f.header); err != nil {
			return fmt.Errorf("write header %s: %w", f.path, err)
		}
		hw.Flush()
		if err := hw.Error(); err != nil {
			return fmt.Errorf("write header %s: %w", f.path, err)
		}
	}

	if _, err := out.Write(f.buf.Bytes()); err != nil {
		return fmt.Errorf("append %s: %w", f.path, err)
	}
	f.buf.Reset()
	return out.Sync()
}

// CSVSink writes orders, trades and sip files into a directory. Rows are
// buffered until Flush.
type CSVSink struct {
	orders *csvFile
	trades *csvFile
	sip    *csvFile
}

// NewCSVSink creates dir if needed. A non-empty runID is appended to every
// file name so that runs do not interleave.
func NewCSVSink(dir, runID string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	name := func(base string) string {
		if runID == "" {
			return filepath.Join(dir, base+".csv")
		}
		return filepath.Join(dir, base+"_"+runID+".csv")
	}
	return &CSVSink{
		orders: newCSVFile(name("orders"), historyHeader),
		trades: newCSVFile(name("trades"), tradeHeader),
		sip:    newCSVFile(name("sip"), sipHeader),
	}, nil
}

func (s *CSVSink) Paths() (orders, trades, sip string) {
	return s.orders.path, s.trades.path, s.sip.path
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func (s *CSVSink) WriteHistory(e engine.HistoryEntry) error {
	return s.orders.write([]string{
		itoa(e.ExchangeID),
		itoa(e.ClientOrderID),
		itoa(e.TraderID),
		itoa(e.Timestamp),
		itoa(int64(e.Type)),
		itoa(e.Quantity),
		itoa(int64(e.Side)),
		itoa(e.Price),
	})
}

func (s *CSVSink) WriteTrade(t engine.Trade) error {
	return s.trades.write([]string{
		itoa(t.TradeID),
		itoa(t.RestingTraderID),
		itoa(t.RestingClientOrderID),
		itoa(t.RestingTimestamp),
		itoa(t.IncomingTraderID),
		itoa(t.IncomingClientOrderID),
		itoa(t.IncomingTimestamp),
		itoa(t.Price),
		itoa(t.Quantity),
		itoa(int64(t.Side)),
	})
}

func (s *CSVSink) WriteTopOfBook(tob stats.TopOfBook, volatility float64) error {
	return s.sip.write([]string{
		itoa(tob.Timestamp),
		itoa(tob.BestBid),
		itoa(tob.BestAsk),
		itoa(tob.BidSize),
		itoa(tob.AskSize),
		strconv.FormatFloat(volatility, 'g', -1, 64),
	})
}

func (s *CSVSink) Flush() error {
	return errors.Join(s.orders.flush(), s.trades.flush(), s.sip.flush())
}

func (s *CSVSink) Close() error {
	return s.Flush()
}
