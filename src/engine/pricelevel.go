package engine

import (
	"github.com/google/btree"
)

// PriceLevel is one active price on one side of the book.
type PriceLevel struct {
	Price    int64
	Count    int
	Quantity int64
	OrderIDs []int64 // fifo ordering for time priority
}

type PriceLevelItem struct {
	PriceLevel *PriceLevel
}

func (p *PriceLevelItem) Less(than btree.Item) bool {
	other := than.(*PriceLevelItem)
	return p.PriceLevel.Price > other.PriceLevel.Price
}

type PriceLevelItemAscending struct {
	PriceLevel *PriceLevel
}

func (p *PriceLevelItemAscending) Less(than btree.Item) bool {
	other := than.(*PriceLevelItemAscending)
	return p.PriceLevel.Price < other.PriceLevel.Price
}

// PriceLevelIndex keeps the active prices of one side. Bids are sorted
// descending and asks ascending, so Min() is always the best price.
type PriceLevelIndex struct {
	side Side
	tree *btree.BTree
}

func NewPriceLevelIndex(side Side) *PriceLevelIndex {
	return &PriceLevelIndex{
		side: side,
		tree: btree.New(32),
	}
}

func (idx *PriceLevelIndex) Side() Side {
	return idx.side
}

func (idx *PriceLevelIndex) wrap(level *PriceLevel) btree.Item {
	if idx.side == SideBuy {
		return &PriceLevelItem{PriceLevel: level}
	}
	return &PriceLevelItemAscending{PriceLevel: level}
}

func (idx *PriceLevelIndex) unwrap(item btree.Item) *PriceLevel {
	if idx.side == SideBuy {
		return item.(*PriceLevelItem).PriceLevel
	}
	return item.(*PriceLevelItemAscending).PriceLevel
}

func (idx *PriceLevelIndex) probe(price int64) btree.Item {
	return idx.wrap(&PriceLevel{Price: price})
}

// Level returns the active level at price.
func (idx *PriceLevelIndex) Level(price int64) (*PriceLevel, bool) {
	item := idx.tree.Get(idx.probe(price))
	if item == nil {
		return nil, false
	}
	return idx.unwrap(item), true
}

// Len is the number of active price levels.
func (idx *PriceLevelIndex) Len() int {
	return idx.tree.Len()
}

func (idx *PriceLevelIndex) InsertOrder(price, orderID, quantity int64) {
	level, ok := idx.Level(price)
	if !ok {
		level = &PriceLevel{
			Price:    price,
			OrderIDs: make([]int64, 0, 4),
		}
		idx.tree.ReplaceOrInsert(idx.wrap(level))
	}

	// exchange IDs are monotonic, so appending keeps the queue sorted
	level.OrderIDs = append(level.OrderIDs, orderID)
	level.Count++
	level.Quantity += quantity
}

// RemoveOrder takes orderID out of the level at price, subtracting quantity
// from the aggregate, and prunes the level once it is empty.
func (idx *PriceLevelIndex) RemoveOrder(price, orderID, quantity int64) error {
	level, ok := idx.Level(price)
	if !ok {
		return violation(idx.side, price, orderID, "no active level for resting order")
	}

	pos := -1
	for i, id := range level.OrderIDs {
		if id == orderID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return violation(idx.side, price, orderID, "order missing from level queue")
	}
	if level.Quantity < quantity {
		return violation(idx.side, price, orderID, "level quantity %d below order quantity %d", level.Quantity, quantity)
	}

	if pos == 0 {
		// fills always consume the front
		level.OrderIDs = level.OrderIDs[1:]
	} else {
		level.OrderIDs = append(level.OrderIDs[:pos], level.OrderIDs[pos+1:]...)
	}
	level.Count--
	level.Quantity -= quantity

	if level.Count == 0 {
		if level.Quantity != 0 {
			return violation(idx.side, price, orderID, "empty level holds quantity %d", level.Quantity)
		}
		idx.tree.Delete(idx.probe(price))
	}
	return nil
}

func (idx *PriceLevelIndex) DecrementLevelQty(price, amount int64) error {
	level, ok := idx.Level(price)
	if !ok {
		return violation(idx.side, price, 0, "decrement on inactive level")
	}
	if amount >= level.Quantity {
		return violation(idx.side, price, 0, "decrement %d would exhaust level quantity %d", amount, level.Quantity)
	}
	level.Quantity -= amount
	return nil
}

// BestPrice is the highest bid or the lowest ask.
func (idx *PriceLevelIndex) BestPrice() (int64, error) {
	item := idx.tree.Min()
	if item == nil {
		return 0, ErrEmptyBook
	}
	return idx.unwrap(item).Price, nil
}

// BestLevel returns the level at BestPrice.
func (idx *PriceLevelIndex) BestLevel() (*PriceLevel, error) {
	item := idx.tree.Min()
	if item == nil {
		return nil, ErrEmptyBook
	}
	return idx.unwrap(item), nil
}

// FrontOfLevel returns the earliest order queued at price.
func (idx *PriceLevelIndex) FrontOfLevel(price int64) (int64, error) {
	level, ok := idx.Level(price)
	if !ok || len(level.OrderIDs) == 0 {
		return 0, ErrEmptyBook
	}
	return level.OrderIDs[0], nil
}

// Ascend walks the levels best price first until fn returns false.
func (idx *PriceLevelIndex) Ascend(fn func(level *PriceLevel) bool) {
	idx.tree.Ascend(func(item btree.Item) bool {
		return fn(idx.unwrap(item))
	})
}

type LevelSnapshot struct {
	Price    int64
	Quantity int64
	Orders   int
}

// Depth returns up to depth levels, best first.
func (idx *PriceLevelIndex) Depth(depth int) []LevelSnapshot {
	if depth <= 0 {
		return nil
	}
	levels := make([]LevelSnapshot, 0, min(depth, idx.Len()))
	idx.Ascend(func(level *PriceLevel) bool {
		if len(levels) >= depth {
			return false
		}
		levels = append(levels, LevelSnapshot{
			Price:    level.Price,
			Quantity: level.Quantity,
			Orders:   level.Count,
		})
		return true
	})
	return levels
}
