// Package cache provides the in-process caches used for read models, with a
// shared cleanup loop so callers do not each run their own ticker.
package cache

import (
	"log/slog"
	"time"
)

// Cache is the read/write surface of a cache, independent of its eviction
// policy.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is any cache that can drop its expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps expired entries out of its registered caches on a shared
// interval.
type Manager struct {
	caches []Cleaner
	stop   chan struct{}
	done   chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Register adds a cache to the sweep. Not safe to call once StartCleanup
// has been called.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup launches the sweep loop. Stop ends it.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.run(interval)
}

func (m *Manager) run(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := 0
			for _, c := range m.caches {
				removed += c.CleanExpired()
			}
			if removed > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", removed)
			}
		case <-m.stop:
			return
		}
	}
}

// Stop ends the sweep loop and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}
