package engine

import "fmt"

type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Opposite returns the contra side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type EventType int

const (
	EventAdd EventType = iota + 1
	EventCancel
	EventModify
)

func (t EventType) String() string {
	switch t {
	case EventAdd:
		return "ADD"
	case EventCancel:
		return "CANCEL"
	case EventModify:
		return "MODIFY"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// OrderEvent is a single instruction submitted to the engine. For Cancel and
// Modify the target is found by (TraderID, ClientOrderID); Quantity on a
// Modify is the amount to take off the resting order.
type OrderEvent struct {
	TraderID      int64
	ClientOrderID int64
	Timestamp     int64
	Type          EventType
	Side          Side
	Price         int64 // ticks
	Quantity      int64
}

// Order is a resting order. ExchangeID is assigned when the order first rests.
type Order struct {
	ExchangeID    int64
	TraderID      int64
	ClientOrderID int64
	Timestamp     int64
	Side          Side
	Price         int64
	Quantity      int64
}

type Trade struct {
	TradeID               int64
	RestingTraderID       int64
	RestingClientOrderID  int64
	RestingTimestamp      int64
	IncomingTraderID      int64
	IncomingClientOrderID int64
	IncomingTimestamp     int64
	Price                 int64 // always the resting order's price
	Quantity              int64
	Side                  Side // side of the incoming order
}

// HistoryEntry records one processed event. ExchangeID is the order that
// rested (Add) or was targeted (Cancel/Modify); zero for a fully matched Add.
type HistoryEntry struct {
	Seq           int64
	ExchangeID    int64
	ClientOrderID int64
	TraderID      int64
	Timestamp     int64
	Type          EventType
	Quantity      int64
	Side          Side
	Price         int64
}
