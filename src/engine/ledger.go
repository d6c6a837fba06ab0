package engine

// TradeLedger is the append-only record of executed trades.
type TradeLedger struct {
	trades []Trade
}

func (l *TradeLedger) append(trade Trade) Trade {
	trade.TradeID = int64(len(l.trades)) + 1
	l.trades = append(l.trades, trade)
	return trade
}

func (l *TradeLedger) Len() int {
	return len(l.trades)
}

func (l *TradeLedger) All() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Since returns the trades with an ID greater than tradeID.
func (l *TradeLedger) Since(tradeID int64) []Trade {
	if tradeID < 0 {
		tradeID = 0
	}
	if tradeID >= int64(len(l.trades)) {
		return nil
	}
	out := make([]Trade, len(l.trades)-int(tradeID))
	copy(out, l.trades[tradeID:])
	return out
}

// OrderHistoryLog is the append-only record of accepted events.
type OrderHistoryLog struct {
	entries []HistoryEntry
}

func (h *OrderHistoryLog) append(entry HistoryEntry) HistoryEntry {
	entry.Seq = int64(len(h.entries)) + 1
	h.entries = append(h.entries, entry)
	return entry
}

func (h *OrderHistoryLog) Len() int {
	return len(h.entries)
}

func (h *OrderHistoryLog) All() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Since returns the entries with a sequence number greater than seq.
func (h *OrderHistoryLog) Since(seq int64) []HistoryEntry {
	if seq < 0 {
		seq = 0
	}
	if seq >= int64(len(h.entries)) {
		return nil
	}
	out := make([]HistoryEntry, len(h.entries)-int(seq))
	copy(out, h.entries[seq:])
	return out
}
