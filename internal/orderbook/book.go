// Package orderbook maintains per-symbol bid/ask ladders built from depth
// deltas and answers execution-quality queries (spread, mid, depth
// imbalance, top-N depth).
package orderbook

import (
	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/collections"
	"github.com/20hyo/rusto/internal/domain"
)

func ascending(a, b decimal.Decimal) bool { return a.LessThan(b) }

// Book is one symbol's bid/ask ladder.
type Book struct {
	Symbol   string
	bids     *collections.OrderedMap[decimal.Decimal, decimal.Decimal]
	asks     *collections.OrderedMap[decimal.Decimal, decimal.Decimal]
	maxDepth int
}

// NewBook creates an empty Book trimmed to maxDepth levels per side.
func NewBook(symbol string, maxDepth int) *Book {
	return &Book{
		Symbol:   symbol,
		bids:     collections.New[decimal.Decimal, decimal.Decimal](ascending),
		asks:     collections.New[decimal.Decimal, decimal.Decimal](ascending),
		maxDepth: maxDepth,
	}
}

// Update applies a depth delta: quantity zero removes the level, otherwise
// the level is inserted or overwritten. After applying all levels, each side
// is trimmed to maxDepth by evicting the worst-priced entries (lowest bids,
// highest asks).
func (b *Book) Update(update domain.DepthUpdate) {
	for _, lvl := range update.Bids {
		if lvl.Quantity.IsZero() {
			b.bids.Delete(lvl.Price)
		} else {
			b.bids.Set(lvl.Price, lvl.Quantity)
		}
	}
	for _, lvl := range update.Asks {
		if lvl.Quantity.IsZero() {
			b.asks.Delete(lvl.Price)
		} else {
			b.asks.Set(lvl.Price, lvl.Quantity)
		}
	}

	for b.bids.Len() > b.maxDepth {
		worst, ok := b.bids.First() // lowest bid is worst
		if !ok {
			break
		}
		b.bids.Delete(worst)
	}
	for b.asks.Len() > b.maxDepth {
		worst, ok := b.asks.Last() // highest ask is worst
		if !ok {
			break
		}
		b.asks.Delete(worst)
	}
}

// BestBid returns the highest bid price and whether one exists.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	return b.bids.Last()
}

// BestAsk returns the lowest ask price and whether one exists.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	return b.asks.First()
}

// Mid returns (best_bid+best_ask)/2, or zero and false if either side is empty.
func (b *Book) Mid() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// Spread returns best_ask-best_bid, or zero and false if either side is empty.
func (b *Book) Spread() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// TotalBidVolume sums all bid-side quantities.
func (b *Book) TotalBidVolume() decimal.Decimal {
	return sumValues(b.bids)
}

// TotalAskVolume sums all ask-side quantities.
func (b *Book) TotalAskVolume() decimal.Decimal {
	return sumValues(b.asks)
}

func sumValues(m *collections.OrderedMap[decimal.Decimal, decimal.Decimal]) decimal.Decimal {
	total := decimal.Zero
	m.Each(func(_ decimal.Decimal, v decimal.Decimal) {
		total = total.Add(v)
	})
	return total
}

// DepthImbalance returns (bid_total, ask_total, bid_total/ask_total). The
// ratio is zero when ask_total is zero.
func (b *Book) DepthImbalance() (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	bidTotal := b.TotalBidVolume()
	askTotal := b.TotalAskVolume()
	if askTotal.IsZero() {
		return bidTotal, askTotal, decimal.Zero
	}
	return bidTotal, askTotal, bidTotal.Div(askTotal)
}

// TopNBidDepth sums quantities across the best n bid levels (highest prices first).
func (b *Book) TopNBidDepth(n int) decimal.Decimal {
	keys := b.bids.Keys()
	total := decimal.Zero
	for i, count := len(keys)-1, 0; i >= 0 && count < n; i, count = i-1, count+1 {
		v, _ := b.bids.Get(keys[i])
		total = total.Add(v)
	}
	return total
}

// TopNAskDepth sums quantities across the best n ask levels (lowest prices first).
func (b *Book) TopNAskDepth(n int) decimal.Decimal {
	keys := b.asks.Keys()
	total := decimal.Zero
	for i, count := 0, 0; i < len(keys) && count < n; i, count = i+1, count+1 {
		v, _ := b.asks.Get(keys[i])
		total = total.Add(v)
	}
	return total
}

// Manager owns one Book per symbol.
type Manager struct {
	maxDepth int
	books    map[string]*Book
}

// NewManager creates a Manager that opens Books on first use, trimmed to maxDepth.
func NewManager(maxDepth int) *Manager {
	return &Manager{maxDepth: maxDepth, books: make(map[string]*Book)}
}

// BookFor returns (creating if necessary) the Book for symbol.
func (m *Manager) BookFor(symbol string) *Book {
	b, ok := m.books[symbol]
	if !ok {
		b = NewBook(symbol, m.maxDepth)
		m.books[symbol] = b
	}
	return b
}

// Lookup returns the Book for symbol without creating it.
func (m *Manager) Lookup(symbol string) (*Book, bool) {
	b, ok := m.books[symbol]
	return b, ok
}
