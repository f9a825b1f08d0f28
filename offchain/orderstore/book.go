package orderstore

import (
	"cosmossdk.io/math"
	"github.com/google/btree"
	"github.com/huandu/skiplist"

	"github.com/openalpha/fracshare/x/settlement/types"
)

const btreeDegree = 32

// bookItem is one resting order in a price-time ordered side.
// Implements btree.Item.
type bookItem struct {
	price   math.Int
	seq     uint64
	orderID string
	desc    bool
}

// Less orders by price priority then arrival. Bids sort highest price
// first, asks lowest price first.
func (a *bookItem) Less(than btree.Item) bool {
	b := than.(*bookItem)
	if !a.price.Equal(b.price) {
		if a.desc {
			return a.price.GT(b.price)
		}
		return a.price.LT(b.price)
	}
	return a.seq < b.seq
}

// book holds the bids and asks of one pool
type book struct {
	bids *btree.BTree
	asks *btree.BTree
}

func newBook() *book {
	return &book{
		bids: btree.New(btreeDegree),
		asks: btree.New(btreeDegree),
	}
}

func (b *book) side(side types.Side) *btree.BTree {
	if side == types.SideBid {
		return b.bids
	}
	return b.asks
}

func itemFor(e *Entry) *bookItem {
	return &bookItem{
		price:   e.Order.PricePerUnit,
		seq:     e.Seq,
		orderID: e.OrderID,
		desc:    e.Order.Side == types.SideBid,
	}
}

func (b *book) add(e *Entry) {
	b.side(e.Order.Side).ReplaceOrInsert(itemFor(e))
}

func (b *book) remove(e *Entry) {
	b.side(e.Order.Side).Delete(itemFor(e))
}

// ascend walks one side in priority order until fn returns false
func (b *book) ascend(side types.Side, fn func(orderID string, price math.Int) bool) {
	b.side(side).Ascend(func(item btree.Item) bool {
		it := item.(*bookItem)
		return fn(it.orderID, it.price)
	})
}

// expiryKey orders the expiry index by deadline then arrival
type expiryKey struct {
	expiry int64
	seq    uint64
}

type expiryComparator struct{}

func (expiryComparator) Compare(lhs, rhs interface{}) int {
	l := lhs.(expiryKey)
	r := rhs.(expiryKey)
	switch {
	case l.expiry < r.expiry:
		return -1
	case l.expiry > r.expiry:
		return 1
	case l.seq < r.seq:
		return -1
	case l.seq > r.seq:
		return 1
	}
	return 0
}

func (expiryComparator) CalcScore(key interface{}) float64 {
	return float64(key.(expiryKey).expiry)
}

func newExpiryIndex() *skiplist.SkipList {
	return skiplist.New(expiryComparator{})
}
