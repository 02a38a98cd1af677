package scheduler

import (
	"sync/atomic"
	"testing"
)

func TestSizeWorkerPoolClampsToRange(t *testing.T) {
	cases := []struct {
		name                                                   string
		totalGB, availableGB, lowThreshGB, headroomGB, perWork float64
		maxWorkers, want                                       int
	}{
		{"plenty of memory clamps to max", 64, 40, 6, 4, 4, 8, 8},
		{"modest memory divides evenly", 20, 15, 6, 4, 4, 8, 4},
		{"below low threshold forces single worker", 64, 2, 6, 4, 4, 8, 1},
		{"formula floor is never below one", 8, 8, 6, 16, 4, 8, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := SizeWorkerPool(c.totalGB, c.availableGB, c.lowThreshGB, c.headroomGB, c.perWork, c.maxWorkers)
			if got != c.want {
				t.Errorf("SizeWorkerPool(%+v) = %d, want %d", c, got, c.want)
			}
		})
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 3
	const tasks = 20
	p := NewPool(size)

	var current, maxSeen int32
	started := make(chan struct{}, tasks)
	release := make(chan struct{})

	// Submit from its own goroutine: once `size` slots are full, further
	// Submit calls block acquiring a slot, and that must not stall the
	// goroutine-count assertion below.
	go func() {
		for i := 0; i < tasks; i++ {
			p.Submit(func() {
				n := atomic.AddInt32(&current, 1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
						break
					}
				}
				started <- struct{}{}
				<-release
				atomic.AddInt32(&current, -1)
			})
		}
	}()

	// Wait for exactly `size` tasks to report in before releasing them;
	// this is the number the pool can ever run concurrently.
	for i := 0; i < size; i++ {
		<-started
	}
	close(release)
	p.Wait()

	if maxSeen > size {
		t.Fatalf("pool allowed %d concurrent tasks, bound is %d", maxSeen, size)
	}
}
