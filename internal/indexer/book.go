package indexer

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"autoRepay/internal/model"
)

// Book holds the latest thresholds of every borrower that ever configured
// them, in first-seen order. A cleared borrower stays listed with zero
// thresholds.
type Book struct {
	mu      sync.RWMutex
	order   []common.Address
	entries map[common.Address]model.UserThresholds
}

func NewBook() *Book {
	return &Book{entries: make(map[common.Address]model.UserThresholds)}
}

// Apply upserts events in order and returns how many were applied.
func (b *Book) Apply(events []model.ThresholdEvent) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, event := range events {
		b.setLocked(event.User, event.Thresholds)
	}
	return len(events)
}

// Set replaces a borrower's thresholds.
func (b *Book) Set(user common.Address, th model.UserThresholds) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setLocked(user, th)
}

func (b *Book) setLocked(user common.Address, th model.UserThresholds) {
	if _, ok := b.entries[user]; !ok {
		b.order = append(b.order, user)
	}
	b.entries[user] = th
}

// Get returns the thresholds of a borrower.
func (b *Book) Get(user common.Address) (model.UserThresholds, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	th, ok := b.entries[user]
	return th, ok
}

// Users returns borrowers in first-seen order.
func (b *Book) Users() []common.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]common.Address, len(b.order))
	copy(out, b.order)
	return out
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Settings returns a copy of the book in first-seen order.
func (b *Book) Settings() []model.UserSetting {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.UserSetting, 0, len(b.order))
	for _, user := range b.order {
		out = append(out, model.UserSetting{User: user, Thresholds: b.entries[user]})
	}
	return out
}

// Restore loads saved settings into the book.
func (b *Book) Restore(settings []model.UserSetting) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range settings {
		b.setLocked(s.User, s.Thresholds)
	}
}
