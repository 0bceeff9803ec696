package staking

import (
	"sort"
	"sync"

	"stakedeck/internal/types"
)

// Book is the in-memory set of tracked transactions for the current process
// lifetime. Records leave only by explicit dismissal; terminal records are
// kept until then so the UI can show history. Stage transitions go through
// the compare-and-set style setters so a record becomes terminal exactly
// once no matter how many checks race.
type Book struct {
	mu   sync.RWMutex
	byID map[string]types.Transaction
}

func NewBook() *Book {
	return &Book{byID: make(map[string]types.Transaction)}
}

func (b *Book) Track(tx types.Transaction) {
	b.mu.Lock()
	b.byID[tx.ID] = tx
	b.mu.Unlock()
}

func (b *Book) Get(id string) (types.Transaction, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tx, ok := b.byID[id]
	return tx, ok
}

// ByAddress returns all records for an address, oldest first.
func (b *Book) ByAddress(address string) []types.Transaction {
	b.mu.RLock()
	out := make([]types.Transaction, 0)
	for _, tx := range b.byID {
		if tx.Address == address {
			out = append(out, tx)
		}
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// NonTerminal returns the still-pending records for an address, oldest first.
func (b *Book) NonTerminal(address string) []types.Transaction {
	all := b.ByAddress(address)
	out := all[:0]
	for _, tx := range all {
		if !tx.Stage.Terminal() {
			out = append(out, tx)
		}
	}
	return out
}

// MarkCompleted transitions a pending record to completed and reports whether
// this call performed the transition. Terminal records are left untouched.
func (b *Book) MarkCompleted(id string) (types.Transaction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, ok := b.byID[id]
	if !ok || tx.Stage != types.StagePending {
		return tx, false
	}
	tx.Stage = types.StageCompleted
	b.byID[id] = tx
	return tx, true
}

// MarkFailed transitions a pending record to failed with the provided reason
// and timestamp, reporting whether this call performed the transition. An
// already-terminal record keeps its original reason and timestamp.
func (b *Book) MarkFailed(id, reason string, failedAt int64) (types.Transaction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, ok := b.byID[id]
	if !ok || tx.Stage != types.StagePending {
		return tx, false
	}
	tx.Stage = types.StageFailed
	tx.FailReason = reason
	tx.FailedAt = failedAt
	b.byID[id] = tx
	return tx, true
}

// BumpChecks increments the retry counter on a pending record.
func (b *Book) BumpChecks(id string) {
	b.mu.Lock()
	if tx, ok := b.byID[id]; ok && tx.Stage == types.StagePending {
		tx.Checks++
		b.byID[id] = tx
	}
	b.mu.Unlock()
}

// RemoveCompleted drops all terminal records for an address and returns how
// many were dropped.
func (b *Book) RemoveCompleted(address string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, tx := range b.byID {
		if tx.Address == address && tx.Stage.Terminal() {
			delete(b.byID, id)
			n++
		}
	}
	return n
}

func (b *Book) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byID[id]; !ok {
		return false
	}
	delete(b.byID, id)
	return true
}
