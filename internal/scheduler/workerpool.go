package scheduler

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/nwwx/forecastpipe/internal/metrics"
)

// SizeWorkerPool computes
// workers = clamp(1, (total_memory_gb - headroom_gb) / mem_per_worker_gb, max_workers),
// reduced to 1 outright if available memory is below the low-memory
// threshold.
func SizeWorkerPool(totalMemGB, availableMemGB, lowMemThreshGB, headroomGB, memPerWorkerGB float64, maxWorkers int) int {
	if availableMemGB < lowMemThreshGB {
		return 1
	}
	n := int((totalMemGB - headroomGB) / memPerWorkerGB)
	if n < 1 {
		n = 1
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	return n
}

// SystemMemoryGB reads total and available memory from /proc/meminfo, the
// standard Linux accounting source, read directly against the kernel
// interface rather than through an OS-specific dependency. On non-Linux
// systems, or if /proc/meminfo is unreadable, it falls back to a
// conservative estimate derived from runtime.NumCPU so the pipeline can
// still start.
func SystemMemoryGB() (totalGB, availableGB float64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		fallback := float64(runtime.NumCPU()) * 2
		return fallback, fallback
	}
	defer f.Close()

	var totalKB, availableKB int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalKB = parseMeminfoKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			availableKB = parseMeminfoKB(line)
		}
	}
	if totalKB == 0 {
		fallback := float64(runtime.NumCPU()) * 2
		return fallback, fallback
	}
	const kbPerGB = 1024 * 1024
	return float64(totalKB) / kbPerGB, float64(availableKB) / kbPerGB
}

func parseMeminfoKB(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Pool is a bounded worker pool: render tasks are the unit of work, and the
// bound is shared across all models rather than applied per model.
type Pool struct {
	sem   chan struct{}
	wg    sync.WaitGroup
	depth int32
	mu    sync.Mutex
}

// NewPool returns a pool that runs at most size tasks concurrently.
func NewPool(size int) *Pool {
	return &Pool{sem: make(chan struct{}, size)}
}

// Submit runs fn on the pool, blocking until a slot is free. Submit itself
// does not block the caller beyond acquiring a slot; fn runs in its own
// goroutine.
func (p *Pool) Submit(fn func()) {
	p.sem <- struct{}{}
	p.wg.Add(1)
	p.mu.Lock()
	p.depth++
	metrics.WorkerQueueDepth.Set(float64(p.depth))
	p.mu.Unlock()

	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
			p.mu.Lock()
			p.depth--
			metrics.WorkerQueueDepth.Set(float64(p.depth))
			p.mu.Unlock()
		}()
		fn()
	}()
}

// Wait blocks until every submitted task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
