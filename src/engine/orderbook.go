package engine

import (
	"errors"
	"math"
)

// OrderBook groups the indices of both sides. Mutations go through rest,
// remove and reduce only, each of which updates every index it touches.
type OrderBook struct {
	Bids    *PriceLevelIndex
	Asks    *PriceLevelIndex
	Orders  *OrderStore
	Traders *TraderOrderIndex
	lastID  int64
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		Bids:    NewPriceLevelIndex(SideBuy),
		Asks:    NewPriceLevelIndex(SideSell),
		Orders:  NewOrderStore(),
		Traders: NewTraderOrderIndex(),
	}
}

func (ob *OrderBook) side(s Side) *PriceLevelIndex {
	if s == SideBuy {
		return ob.Bids
	}
	return ob.Asks
}

// rest assigns the next exchange ID and inserts the order into all three
// indices.
func (ob *OrderBook) rest(order *Order) int64 {
	ob.lastID++
	order.ExchangeID = ob.lastID

	ob.Orders.Insert(order)
	ob.side(order.Side).InsertOrder(order.Price, order.ExchangeID, order.Quantity)
	ob.Traders.Register(order.TraderID, order.ClientOrderID, order.ExchangeID)
	return order.ExchangeID
}

// remove deletes a resting order from all three indices.
func (ob *OrderBook) remove(order *Order) error {
	if err := ob.side(order.Side).RemoveOrder(order.Price, order.ExchangeID, order.Quantity); err != nil {
		return err
	}
	ob.Orders.Remove(order.ExchangeID)
	ob.Traders.Unregister(order.TraderID, order.ClientOrderID)
	return nil
}

// reduce takes amount off a resting order that stays on the book.
func (ob *OrderBook) reduce(order *Order, amount int64) error {
	if amount >= order.Quantity {
		return violation(order.Side, order.Price, order.ExchangeID, "reduce by %d would exhaust quantity %d", amount, order.Quantity)
	}
	if err := ob.side(order.Side).DecrementLevelQty(order.Price, amount); err != nil {
		return err
	}
	return ob.Orders.DecrementQuantity(order.ExchangeID, amount)
}

// front returns the earliest order at the best price of side s.
func (ob *OrderBook) front(s Side) (*Order, error) {
	idx := ob.side(s)
	price, err := idx.BestPrice()
	if err != nil {
		return nil, err
	}
	id, err := idx.FrontOfLevel(price)
	if err != nil {
		return nil, violation(s, price, 0, "active level with empty queue")
	}
	order, err := ob.Orders.Get(id)
	if err != nil {
		return nil, violation(s, price, id, "queued order has no record")
	}
	return order, nil
}

func (ob *OrderBook) GetBestBid() (price int64, quantity int64, err error) {
	return ob.best(ob.Bids)
}

func (ob *OrderBook) GetBestAsk() (price int64, quantity int64, err error) {
	return ob.best(ob.Asks)
}

func (ob *OrderBook) best(idx *PriceLevelIndex) (int64, int64, error) {
	level, err := idx.BestLevel()
	if err != nil {
		return 0, 0, err
	}
	return level.Price, level.Quantity, nil
}

// GetOrder looks up a resting order by the trader's own ID.
func (ob *OrderBook) GetOrder(traderID, clientOrderID int64) (*Order, error) {
	id, err := ob.Traders.Resolve(traderID, clientOrderID)
	if err != nil {
		return nil, err
	}
	return ob.Orders.Get(id)
}

// LastExchangeID is the most recently assigned exchange order ID.
func (ob *OrderBook) LastExchangeID() int64 {
	return ob.lastID
}

type quote struct {
	price int64
	size  int64
	ok    bool
}

type topOfBook struct {
	bid quote
	ask quote
}

func (ob *OrderBook) top() topOfBook {
	var t topOfBook
	if p, q, err := ob.GetBestBid(); err == nil {
		t.bid = quote{price: p, size: q, ok: true}
	}
	if p, q, err := ob.GetBestAsk(); err == nil {
		t.ask = quote{price: p, size: q, ok: true}
	}
	return t
}

type OrderBookSnapshot struct {
	Bids []LevelSnapshot // sorted descending (highest first)
	Asks []LevelSnapshot // sorted ascending (lowest first)
}

func (ob *OrderBook) GetOrderBookSnapshot(depth int) OrderBookSnapshot {
	return OrderBookSnapshot{
		Bids: ob.Bids.Depth(depth),
		Asks: ob.Asks.Depth(depth),
	}
}

// CheckInvariants audits the whole book: per-level aggregates and counts,
// store and trader index agreement, ID ordering and the uncrossed state.
func (ob *OrderBook) CheckInvariants() error {
	var errs []error
	queued := 0

	for _, idx := range []*PriceLevelIndex{ob.Bids, ob.Asks} {
		idx.Ascend(func(level *PriceLevel) bool {
			if level.Count < 1 {
				errs = append(errs, violation(idx.side, level.Price, 0, "active level with count %d", level.Count))
			}
			if level.Count != len(level.OrderIDs) {
				errs = append(errs, violation(idx.side, level.Price, 0, "count %d != queue length %d", level.Count, len(level.OrderIDs)))
			}
			var sum int64
			var prev int64
			for _, id := range level.OrderIDs {
				if id <= prev {
					errs = append(errs, violation(idx.side, level.Price, id, "queue out of time priority"))
				}
				prev = id
				order, err := ob.Orders.Get(id)
				if err != nil {
					errs = append(errs, violation(idx.side, level.Price, id, "queued order has no record"))
					continue
				}
				if order.Side != idx.side || order.Price != level.Price {
					errs = append(errs, violation(idx.side, level.Price, id, "record at %s %d", order.Side, order.Price))
				}
				if order.Quantity <= 0 {
					errs = append(errs, violation(idx.side, level.Price, id, "resting quantity %d", order.Quantity))
					continue
				}
				if got, err := ob.Traders.Resolve(order.TraderID, order.ClientOrderID); err != nil || got != id {
					errs = append(errs, violation(idx.side, level.Price, id, "trader index out of sync"))
				}
				if sum > math.MaxInt64-order.Quantity {
					errs = append(errs, violation(idx.side, level.Price, id, "sum of orders overflows"))
					continue
				}
				sum += order.Quantity
			}
			if level.Quantity <= 0 {
				errs = append(errs, violation(idx.side, level.Price, 0, "non-positive aggregate %d", level.Quantity))
			}
			if sum != level.Quantity {
				errs = append(errs, violation(idx.side, level.Price, 0, "aggregate %d != sum of orders %d", level.Quantity, sum))
			}
			queued += len(level.OrderIDs)
			return true
		})
	}

	if queued != ob.Orders.Len() {
		errs = append(errs, violation(0, 0, 0, "%d queued orders but %d records", queued, ob.Orders.Len()))
	}
	if ob.Traders.Len() != ob.Orders.Len() {
		errs = append(errs, violation(0, 0, 0, "%d trader entries but %d records", ob.Traders.Len(), ob.Orders.Len()))
	}

	bid, bidErr := ob.Bids.BestPrice()
	ask, askErr := ob.Asks.BestPrice()
	if bidErr == nil && askErr == nil && bid >= ask {
		errs = append(errs, violation(0, bid, 0, "crossed book: bid %d >= ask %d", bid, ask))
	}

	return errors.Join(errs...)
}
