package gribcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLockReclaimsStaleLockFile(t *testing.T) {
	cache, err := New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := testKey()
	lockPath := cache.lockPath(key)

	if err := os.MkdirAll(filepath.Dir(cache.PathFor(key)), 0o755); err != nil {
		t.Fatalf("mkdir run dir: %v", err)
	}
	if err := os.WriteFile(lockPath, nil, 0o644); err != nil {
		t.Fatalf("seed stale lock: %v", err)
	}
	stale := time.Now().Add(-11 * time.Minute)
	if err := os.Chtimes(lockPath, stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	unlock, err := cache.lock(key)
	if err != nil {
		t.Fatalf("lock should reclaim a lock file older than 10 minutes: %v", err)
	}
	unlock()

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatal("expected the lock file to be removed after unlock")
	}
}

func TestLockAndUnlockRoundTrip(t *testing.T) {
	cache, err := New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := testKey()
	if err := os.MkdirAll(filepath.Dir(cache.PathFor(key)), 0o755); err != nil {
		t.Fatalf("mkdir run dir: %v", err)
	}

	unlock, err := cache.lock(key)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := os.Stat(cache.lockPath(key)); err != nil {
		t.Fatalf("expected lock file to exist while held: %v", err)
	}
	unlock()
	if _, err := os.Stat(cache.lockPath(key)); !os.IsNotExist(err) {
		t.Fatal("expected lock file to be removed after unlock")
	}
}
