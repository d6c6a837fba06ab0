package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

type OrderStatus string

const (
	StatusAccepted    OrderStatus = "ACCEPTED"
	StatusPartialFill OrderStatus = "PARTIAL_FILL"
	StatusFilled      OrderStatus = "FILLED"
	StatusCancelled   OrderStatus = "CANCELLED"
	StatusModified    OrderStatus = "MODIFIED"
)

type MatchResult struct {
	Status            OrderStatus
	Trades            []Trade
	TopOfBookChanged  bool
	RestingID         int64 // exchange ID of the resting or targeted order, 0 if none
	FilledQuantity    int64
	RemainingQuantity int64
}

type Options struct {
	Logger zerolog.Logger
	// CheckInvariants audits the full book after every event.
	CheckInvariants bool
}

// MatchingEngine processes one event at a time against a single book. It is
// not safe for concurrent use.
type MatchingEngine struct {
	book            *OrderBook
	trades          TradeLedger
	history         OrderHistoryLog
	log             zerolog.Logger
	checkInvariants bool
	halted          error
}

func NewMatchingEngine(opts Options) *MatchingEngine {
	return &MatchingEngine{
		book:            NewOrderBook(),
		log:             opts.Logger,
		checkInvariants: opts.CheckInvariants,
	}
}

func (e *MatchingEngine) Book() *OrderBook {
	return e.book
}

func (e *MatchingEngine) Trades() *TradeLedger {
	return &e.trades
}

func (e *MatchingEngine) History() *OrderHistoryLog {
	return &e.history
}

// Halted returns the invariant violation that stopped the engine, if any.
func (e *MatchingEngine) Halted() error {
	return e.halted
}

func (e *MatchingEngine) ProcessOrder(ev OrderEvent) (*MatchResult, error) {
	if e.halted != nil {
		return nil, e.halted
	}
	if err := validate(ev); err != nil {
		return nil, err
	}

	before := e.book.top()

	var (
		result *MatchResult
		err    error
	)
	switch ev.Type {
	case EventAdd:
		result, err = e.add(ev)
	case EventCancel:
		result, err = e.cancel(ev)
	case EventModify:
		result, err = e.modify(ev)
	}
	if err != nil {
		return nil, e.fail(err)
	}

	if err := e.audit(); err != nil {
		return nil, e.fail(err)
	}

	result.TopOfBookChanged = e.book.top() != before
	return result, nil
}

// Seed rests an order without matching. It refuses orders that would cross.
func (e *MatchingEngine) Seed(ev OrderEvent) (*MatchResult, error) {
	if e.halted != nil {
		return nil, e.halted
	}
	ev.Type = EventAdd
	if err := validate(ev); err != nil {
		return nil, err
	}
	if err := e.checkDuplicate(ev); err != nil {
		return nil, err
	}
	if err := e.checkLevelCapacity(ev); err != nil {
		return nil, err
	}
	if e.marketable(ev) {
		return nil, ErrSeedCrosses
	}

	before := e.book.top()
	id := e.restIncoming(ev, ev.Quantity)
	e.record(ev, id, ev.Quantity)

	if err := e.audit(); err != nil {
		return nil, e.fail(err)
	}
	return &MatchResult{
		Status:            StatusAccepted,
		Trades:            []Trade{},
		TopOfBookChanged:  e.book.top() != before,
		RestingID:         id,
		RemainingQuantity: ev.Quantity,
	}, nil
}

func validate(ev OrderEvent) error {
	switch ev.Type {
	case EventAdd:
		if ev.Side != SideBuy && ev.Side != SideSell {
			return fmt.Errorf("%w: side %s", ErrInvalidEvent, ev.Side)
		}
		if ev.Price <= 0 {
			return ErrInvalidPrice
		}
		if ev.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	case EventCancel:
	case EventModify:
		if ev.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	default:
		return fmt.Errorf("%w: type %s", ErrInvalidEvent, ev.Type)
	}
	return nil
}

func (e *MatchingEngine) checkDuplicate(ev OrderEvent) error {
	if _, err := e.book.Traders.Resolve(ev.TraderID, ev.ClientOrderID); err == nil {
		return ErrDuplicateOrder
	}
	return nil
}

// checkLevelCapacity rejects an add whose quantity could overflow the
// aggregate of the level it would rest on.
func (e *MatchingEngine) checkLevelCapacity(ev OrderEvent) error {
	level, ok := e.book.side(ev.Side).Level(ev.Price)
	if ok && ev.Quantity > math.MaxInt64-level.Quantity {
		return fmt.Errorf("%w: level %s %d would overflow", ErrInvalidQuantity, ev.Side, ev.Price)
	}
	return nil
}

// crosses reports whether an incoming order at price can trade against a
// resting order at contra.
func crosses(side Side, price, contra int64) bool {
	if side == SideBuy {
		return price >= contra
	}
	return price <= contra
}

// marketable is false for an empty contra book.
func (e *MatchingEngine) marketable(ev OrderEvent) bool {
	contra, err := e.book.side(ev.Side.Opposite()).BestPrice()
	if err != nil {
		return false
	}
	return crosses(ev.Side, ev.Price, contra)
}

func (e *MatchingEngine) add(ev OrderEvent) (*MatchResult, error) {
	if err := e.checkDuplicate(ev); err != nil {
		return nil, err
	}
	if err := e.checkLevelCapacity(ev); err != nil {
		return nil, err
	}

	result := &MatchResult{
		Status: StatusAccepted,
		Trades: make([]Trade, 0),
	}

	remainder := ev.Quantity
	if e.marketable(ev) {
		var err error
		remainder, err = e.match(ev, result)
		if err != nil {
			return nil, err
		}
	}

	result.RemainingQuantity = remainder
	result.FilledQuantity = ev.Quantity - remainder

	if remainder > 0 {
		result.RestingID = e.restIncoming(ev, remainder)
		if result.FilledQuantity > 0 {
			result.Status = StatusPartialFill
		}
	} else {
		result.Status = StatusFilled
	}

	e.record(ev, result.RestingID, ev.Quantity)
	return result, nil
}

// match sweeps the contra side best price first and returns the unfilled
// quantity.
func (e *MatchingEngine) match(ev OrderEvent, result *MatchResult) (int64, error) {
	contraSide := ev.Side.Opposite()
	contra := e.book.side(contraSide)
	remainder := ev.Quantity

	for remainder > 0 {
		price, err := contra.BestPrice()
		if errors.Is(err, ErrEmptyBook) {
			break
		}
		if !crosses(ev.Side, ev.Price, price) {
			break
		}

		resting, err := e.book.front(contraSide)
		if err != nil {
			return 0, err
		}

		qty := min(remainder, resting.Quantity)
		trade := e.trades.append(Trade{
			RestingTraderID:       resting.TraderID,
			RestingClientOrderID:  resting.ClientOrderID,
			RestingTimestamp:      resting.Timestamp,
			IncomingTraderID:      ev.TraderID,
			IncomingClientOrderID: ev.ClientOrderID,
			IncomingTimestamp:     ev.Timestamp,
			Price:                 resting.Price,
			Quantity:              qty,
			Side:                  ev.Side,
		})
		result.Trades = append(result.Trades, trade)

		e.log.Debug().
			Int64("trade_id", trade.TradeID).
			Int64("price", trade.Price).
			Int64("quantity", trade.Quantity).
			Int64("resting_id", resting.ExchangeID).
			Int64("incoming_trader", ev.TraderID).
			Str("side", ev.Side.String()).
			Msg("Trade executed")

		if qty == resting.Quantity {
			if err := e.book.remove(resting); err != nil {
				return 0, err
			}
		} else {
			if err := e.book.reduce(resting, qty); err != nil {
				return 0, err
			}
		}
		remainder -= qty
	}

	return remainder, nil
}

func (e *MatchingEngine) restIncoming(ev OrderEvent, quantity int64) int64 {
	id := e.book.rest(&Order{
		TraderID:      ev.TraderID,
		ClientOrderID: ev.ClientOrderID,
		Timestamp:     ev.Timestamp,
		Side:          ev.Side,
		Price:         ev.Price,
		Quantity:      quantity,
	})

	e.log.Debug().
		Int64("exchange_id", id).
		Int64("trader_id", ev.TraderID).
		Int64("client_order_id", ev.ClientOrderID).
		Str("side", ev.Side.String()).
		Int64("price", ev.Price).
		Int64("quantity", quantity).
		Msg("Order rested")
	return id
}

func (e *MatchingEngine) cancel(ev OrderEvent) (*MatchResult, error) {
	order, err := e.book.GetOrder(ev.TraderID, ev.ClientOrderID)
	if err != nil {
		return nil, err
	}
	// copy before removal; the record leaves the store
	resting := *order
	if err := e.book.remove(order); err != nil {
		return nil, err
	}

	e.recordResting(ev, &resting, resting.Quantity)
	return &MatchResult{
		Status:    StatusCancelled,
		Trades:    []Trade{},
		RestingID: resting.ExchangeID,
	}, nil
}

// modify reduces a resting order by ev.Quantity, cancelling it when the
// decrease covers the whole quantity.
func (e *MatchingEngine) modify(ev OrderEvent) (*MatchResult, error) {
	order, err := e.book.GetOrder(ev.TraderID, ev.ClientOrderID)
	if err != nil {
		return nil, err
	}
	resting := *order

	result := &MatchResult{
		Trades:    []Trade{},
		RestingID: resting.ExchangeID,
	}
	if ev.Quantity >= resting.Quantity {
		if err := e.book.remove(order); err != nil {
			return nil, err
		}
		result.Status = StatusCancelled
	} else {
		if err := e.book.reduce(order, ev.Quantity); err != nil {
			return nil, err
		}
		result.Status = StatusModified
		result.RemainingQuantity = order.Quantity
	}

	e.recordResting(ev, &resting, ev.Quantity)
	return result, nil
}

func (e *MatchingEngine) record(ev OrderEvent, exchangeID, quantity int64) {
	e.history.append(HistoryEntry{
		ExchangeID:    exchangeID,
		ClientOrderID: ev.ClientOrderID,
		TraderID:      ev.TraderID,
		Timestamp:     ev.Timestamp,
		Type:          ev.Type,
		Quantity:      quantity,
		Side:          ev.Side,
		Price:         ev.Price,
	})
}

// recordResting logs a cancel or modify with the side and price of the order
// it touched, which the event may only echo.
func (e *MatchingEngine) recordResting(ev OrderEvent, resting *Order, quantity int64) {
	e.history.append(HistoryEntry{
		ExchangeID:    resting.ExchangeID,
		ClientOrderID: ev.ClientOrderID,
		TraderID:      ev.TraderID,
		Timestamp:     ev.Timestamp,
		Type:          ev.Type,
		Quantity:      quantity,
		Side:          resting.Side,
		Price:         resting.Price,
	})
}

func (e *MatchingEngine) audit() error {
	if !e.checkInvariants {
		return nil
	}
	return e.book.CheckInvariants()
}

// fail halts the engine on invariant violations and passes other errors
// through untouched.
func (e *MatchingEngine) fail(err error) error {
	if errors.Is(err, ErrBookInvariant) {
		e.halted = err
		e.log.Error().
			Err(err).
			Int("resting_orders", e.book.Orders.Len()).
			Int("trades", e.trades.Len()).
			Msg("Book invariant violated, halting engine")
	}
	return err
}
