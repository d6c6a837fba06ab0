package engine

// TraderOrderIndex maps a trader's own order IDs to exchange IDs. Cancel and
// modify requests arrive keyed by the trader's ID.
type TraderOrderIndex struct {
	traders map[int64]map[int64]int64
	size    int
}

func NewTraderOrderIndex() *TraderOrderIndex {
	return &TraderOrderIndex{traders: make(map[int64]map[int64]int64)}
}

func (ti *TraderOrderIndex) Register(traderID, clientOrderID, exchangeID int64) {
	orders, ok := ti.traders[traderID]
	if !ok {
		orders = make(map[int64]int64)
		ti.traders[traderID] = orders
	}
	if _, exists := orders[clientOrderID]; !exists {
		ti.size++
	}
	orders[clientOrderID] = exchangeID
}

func (ti *TraderOrderIndex) Resolve(traderID, clientOrderID int64) (int64, error) {
	orders, ok := ti.traders[traderID]
	if !ok {
		return 0, ErrOrderNotFound
	}
	exchangeID, ok := orders[clientOrderID]
	if !ok {
		return 0, ErrOrderNotFound
	}
	return exchangeID, nil
}

func (ti *TraderOrderIndex) Unregister(traderID, clientOrderID int64) {
	orders, ok := ti.traders[traderID]
	if !ok {
		return
	}
	if _, exists := orders[clientOrderID]; !exists {
		return
	}
	delete(orders, clientOrderID)
	ti.size--
	if len(orders) == 0 {
		delete(ti.traders, traderID)
	}
}

func (ti *TraderOrderIndex) Len() int {
	return ti.size
}
