// Package keylock serializes mutations per key with bounded waiting.
//
// Keys are always acquired in sorted order, so two callers locking
// overlapping key sets cannot deadlock. A caller that cannot obtain every
// key within the timeout gets ErrBusy and holds nothing.
package keylock

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hotel-pms-backend/internal/metrics"
)

var ErrBusy = apperror.New(http.StatusServiceUnavailable, apperror.KindBusy, "resource busy, retry later")

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// Manager hands out exclusive per-key locks.
type Manager struct {
	mu      sync.Mutex
	slots   map[string]*slot
	timeout time.Duration
}

// New creates a Manager whose acquisitions give up after timeout.
func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Manager{
		slots:   make(map[string]*slot),
		timeout: timeout,
	}
}

// Unlock releases keys obtained from Acquire.
type Unlock func()

// Acquire locks all keys or none of them.
func (m *Manager) Acquire(ctx context.Context, keys ...string) (Unlock, error) {
	keys = normalize(keys)

	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	held := make([]*slot, 0, len(keys))
	heldKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		s := m.ref(k)
		if err := s.sem.Acquire(waitCtx, 1); err != nil {
			m.unref(k, s, false)
			m.releaseAll(heldKeys, held)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.IncLockBusy()
			return nil, apperror.Detail(ErrBusy, ErrBusy.Message+": "+k)
		}
		held = append(held, s)
		heldKeys = append(heldKeys, k)
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.releaseAll(heldKeys, held) })
	}, nil
}

func (m *Manager) releaseAll(keys []string, slots []*slot) {
	for i := len(slots) - 1; i >= 0; i-- {
		m.unref(keys[i], slots[i], true)
	}
}

func (m *Manager) ref(k string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[k]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		m.slots[k] = s
	}
	s.refs++
	return s
}

func (m *Manager) unref(k string, s *slot, release bool) {
	if release {
		s.sem.Release(1)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, k)
	}
}

// Len reports how many keys are currently tracked.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsBusy reports whether err is a lock timeout.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
