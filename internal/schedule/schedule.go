package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Options bounds the parallelism of a run. BatchSize wins when set;
// otherwise the size is derived from TargetRate and PerItemCost, capped by
// MaxBatchSize. Delay is the pause between consecutive batches.
type Options struct {
	BatchSize    int
	MaxBatchSize int
	TargetRate   float64
	PerItemCost  time.Duration
	Delay        time.Duration

	// OnPanic is invoked when a worker panics; the item keeps its zero
	// result and siblings are unaffected.
	OnPanic func(item string, v any)
}

// Size resolves the effective batch size.
func (o Options) Size() int {
	size := o.BatchSize
	if size <= 0 && o.TargetRate > 0 {
		cost := o.PerItemCost + o.Delay
		if cost <= 0 {
			cost = time.Second
		}
		size = int(o.TargetRate * cost.Seconds())
	}
	if size <= 0 {
		size = 1
	}
	if o.MaxBatchSize > 0 && size > o.MaxBatchSize {
		size = o.MaxBatchSize
	}
	return size
}

// Run dispatches fn over items in sequential batches of bounded size. Every
// worker of a batch finishes before the next batch starts, and the returned
// slice is aligned with items. A panic in one worker is contained to that
// item; siblings keep running. Cancellation is honored between batches only,
// so in-flight work always drains into the result slice.
func Run[R any](ctx context.Context, items []string, opts Options, fn func(context.Context, string) R) []R {
	results := make([]R, len(items))
	size := opts.Size()

	for start := 0; start < len(items); start += size {
		if ctx.Err() != nil {
			break
		}
		end := start + size
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				defer func() {
					// A panicking probe must not take the batch down.
					if v := recover(); v != nil && opts.OnPanic != nil {
						opts.OnPanic(items[idx], v)
					}
				}()
				results[idx] = fn(ctx, items[idx])
			}(i)
		}
		wg.Wait()

		if end < len(items) && opts.Delay > 0 {
			select {
			case <-time.After(opts.Delay):
			case <-ctx.Done():
			}
		}
	}
	return results
}

// Validate rejects option combinations that cannot produce a usable size.
func (o Options) Validate() error {
	if o.BatchSize < 0 {
		return fmt.Errorf("batch size must not be negative")
	}
	if o.BatchSize == 0 && o.TargetRate == 0 && o.MaxBatchSize == 0 {
		return fmt.Errorf("need batch_size, target_rate or max_batch_size")
	}
	return nil
}
