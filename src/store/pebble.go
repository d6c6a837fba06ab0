package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"double-auction/src/engine"
	"double-auction/src/stats"
)

const (
	kindTrade   = "trade"
	kindHistory = "order"
	kindSIP     = "sip"
)

// keys: <kind>/<runID>/<8-byte big-endian seq>, so a prefix scan returns a
// run's records in append order.
func recordPrefix(kind, runID string) []byte {
	return []byte(kind + "/" + runID + "/")
}

func recordKey(kind, runID string, seq int64) []byte {
	key := recordPrefix(kind, runID)
	return binary.BigEndian.AppendUint64(key, uint64(seq))
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// PebbleSink stores ledger entries in a pebble database. Writes collect in a
// batch that Flush commits with pebble.Sync.
type PebbleSink struct {
	db     *pebble.DB
	runID  string
	batch  *pebble.Batch
	sipSeq int64
}

func OpenPebbleSink(dir, runID string) (*PebbleSink, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", dir, err)
	}
	return &PebbleSink{
		db:    db,
		runID: runID,
		batch: db.NewBatch(),
	}, nil
}

func (s *PebbleSink) put(kind string, seq int64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s %d: %w", kind, seq, err)
	}
	return s.batch.Set(recordKey(kind, s.runID, seq), data, nil)
}

func (s *PebbleSink) WriteTrade(trade engine.Trade) error {
	return s.put(kindTrade, trade.TradeID, trade)
}

func (s *PebbleSink) WriteHistory(entry engine.HistoryEntry) error {
	return s.put(kindHistory, entry.Seq, entry)
}

func (s *PebbleSink) WriteTopOfBook(tob stats.TopOfBook, volatility float64) error {
	s.sipSeq++
	return s.put(kindSIP, s.sipSeq, TopOfBookRecord{
		Seq:        s.sipSeq,
		Timestamp:  tob.Timestamp,
		BestBid:    tob.BestBid,
		BestAsk:    tob.BestAsk,
		BidSize:    tob.BidSize,
		AskSize:    tob.AskSize,
		Volatility: volatility,
	})
}

func (s *PebbleSink) Flush() error {
	if s.batch.Empty() {
		return nil
	}
	if err := s.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	if err := s.batch.Close(); err != nil {
		return err
	}
	s.batch = s.db.NewBatch()
	return nil
}

func (s *PebbleSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if err := s.batch.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

func scan[T any](db *pebble.DB, kind, runID string) ([]T, error) {
	prefix := recordPrefix(kind, runID)
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []T
	for iter.First(); iter.Valid(); iter.Next() {
		var v T
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", iter.Key(), err)
		}
		out = append(out, v)
	}
	return out, iter.Error()
}

// Trades returns the committed trades of a run in trade ID order.
func (s *PebbleSink) Trades(runID string) ([]engine.Trade, error) {
	return scan[engine.Trade](s.db, kindTrade, runID)
}

func (s *PebbleSink) History(runID string) ([]engine.HistoryEntry, error) {
	return scan[engine.HistoryEntry](s.db, kindHistory, runID)
}

func (s *PebbleSink) TopOfBook(runID string) ([]TopOfBookRecord, error) {
	return scan[TopOfBookRecord](s.db, kindSIP, runID)
}
