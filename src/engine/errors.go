package engine

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidQuantity = errors.New("invalid quantity: must be positive")
	ErrInvalidPrice    = errors.New("invalid price: must be positive")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrDuplicateOrder  = errors.New("client order ID already resting")
	ErrSeedCrosses     = errors.New("seed order would cross the book")
	ErrEmptyBook       = errors.New("empty book")
	ErrBookInvariant   = errors.New("book invariant violation")
)

// InvariantViolationError reports internal book corruption. Once one is
// returned the engine refuses further events.
type InvariantViolationError struct {
	Side    Side
	Price   int64
	OrderID int64
	Detail  string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("book invariant violation: %s (side=%s price=%d order=%d)", e.Detail, e.Side, e.Price, e.OrderID)
}

func (e *InvariantViolationError) Is(target error) bool {
	return target == ErrBookInvariant
}

func violation(side Side, price, orderID int64, format string, args ...any) *InvariantViolationError {
	return &InvariantViolationError{
		Side:    side,
		Price:   price,
		OrderID: orderID,
		Detail:  fmt.Sprintf(format, args...),
	}
}
