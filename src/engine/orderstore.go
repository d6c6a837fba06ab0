package engine

// OrderStore holds resting order records by exchange ID.
type OrderStore struct {
	orders map[int64]*Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[int64]*Order)}
}

func (s *OrderStore) Insert(order *Order) {
	s.orders[order.ExchangeID] = order
}

func (s *OrderStore) Get(exchangeID int64) (*Order, error) {
	order, ok := s.orders[exchangeID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderStore) DecrementQuantity(exchangeID, amount int64) error {
	order, ok := s.orders[exchangeID]
	if !ok {
		return ErrOrderNotFound
	}
	order.Quantity -= amount
	return nil
}

func (s *OrderStore) Remove(exchangeID int64) {
	delete(s.orders, exchangeID)
}

func (s *OrderStore) Len() int {
	return len(s.orders)
}
