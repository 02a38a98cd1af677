package gribcache

import (
	"os"
	"time"
)

// lock takes the per-key advisory lock via O_CREATE|O_EXCL on a sidecar
// ".lock" file: this primitive is universal across target filesystems,
// unlike flock. It busy-waits with a short sleep because the contended
// section (one HTTP download) is seconds, not milliseconds — the same
// tradeoff the scheduler's polling loop makes.
func (c *Cache) lock(key Key) (unlock func(), err error) {
	path := c.lockPath(key)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		// Another worker holds the lock; a stale lock from a crashed process
		// is reclaimed once it is older than 10 minutes.
		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > 10*time.Minute {
			os.Remove(path)
			continue
		}
		time.Sleep(50 * time.Millisecond)
	}
}
