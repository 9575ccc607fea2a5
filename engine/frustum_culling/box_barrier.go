package frustum_culling

import (
	"context"
	"sync"
)

// BoxBarrier resolves once every object registered in its epoch has a computed
// bounding box. A new barrier replaces the previous one on each registration change,
// so a barrier only ever moves from pending to ready.
type BoxBarrier struct {
	epoch uint64
	done  chan struct{}
	once  sync.Once
}

func newBoxBarrier(epoch uint64) *BoxBarrier {
	return &BoxBarrier{epoch: epoch, done: make(chan struct{})}
}

// Epoch returns the registration epoch this barrier belongs to.
func (b *BoxBarrier) Epoch() uint64 {
	return b.epoch
}

// Ready reports whether the barrier has resolved. It never blocks.
//
// Returns:
//   - bool: true once all boxes for the epoch are available
func (b *BoxBarrier) Ready() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the barrier resolves or ctx is done.
//
// Parameters:
//   - ctx: cancels the wait
//
// Returns:
//   - error: ctx.Err() if the context ended first, nil otherwise
func (b *BoxBarrier) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BoxBarrier) resolve() {
	b.once.Do(func() { close(b.done) })
}
