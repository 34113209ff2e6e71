package concurrency

import (
	"context"
	"sync"
)

// ForEach fans tasks out over at most workers goroutines and waits for
// them to finish. fn receives the task index; results should be written
// to index-addressed slots so callers stay deterministic.
func ForEach(ctx context.Context, workers, tasks int, fn func(ctx context.Context, i int)) {
	if tasks <= 0 {
		return
	}
	if workers > tasks {
		workers = tasks
	}
	if workers < 1 {
		workers = 1
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				fn(ctx, i)
			}
		}()
	}

feed:
	for i := 0; i < tasks; i++ {
		select {
		case idx <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(idx)
	wg.Wait()
}
