package services

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/mylesweissleder/newday-engine/pkg/apperrors"
)

// AccountBatchGate serializes batch operations per account. Batches for
// different accounts run concurrently; a second trigger for the same account
// while one is in flight is rejected with apperrors.ErrBatchInFlight rather
// than queued, so the scheduler can simply retry on its next tick.
type AccountBatchGate struct {
	mu    sync.Mutex
	gates map[uuid.UUID]*semaphore.Weighted
}

// NewAccountBatchGate creates an empty gate set.
func NewAccountBatchGate() *AccountBatchGate {
	return &AccountBatchGate{
		gates: make(map[uuid.UUID]*semaphore.Weighted),
	}
}

// Acquire claims the account's batch slot. The returned release function
// must be called when the batch finishes.
func (g *AccountBatchGate) Acquire(accountID uuid.UUID) (func(), error) {
	g.mu.Lock()
	sem, ok := g.gates[accountID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		g.gates[accountID] = sem
	}
	g.mu.Unlock()

	if !sem.TryAcquire(1) {
		return nil, apperrors.ErrBatchInFlight
	}
	return func() { sem.Release(1) }, nil
}

// chunkBounds yields [start, end) index pairs covering total items in chunks
// of the given size. A failure inside one chunk only requires re-processing
// that chunk, not the whole batch.
func chunkBounds(total, size int) [][2]int {
	if total <= 0 {
		return nil
	}
	if size <= 0 {
		size = 50
	}

	bounds := make([][2]int, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		bounds = append(bounds, [2]int{start, end})
	}
	return bounds
}
