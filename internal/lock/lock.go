// Package lock provides mutual exclusion tokens for classification runs,
// either in process or shared through Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/service"
)

// ErrNotHeld is returned when releasing a lock that expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Key names the lock guarding one (user, file) batch.
func Key(userID string, fileID int64) string {
	return fmt.Sprintf("classify:%s:%d", userID, fileID)
}

type memoryEntry struct {
	expires time.Time
	token   string
}

// Memory is an in-process Locker.
type Memory struct {
	held map[string]memoryEntry
	now  func() time.Time
	mu   sync.Mutex
}

// NewMemory creates an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]memoryEntry), now: time.Now}
}

// TryLock acquires key for ttl or fails with common.ErrJobInProgress.
func (m *Memory) TryLock(ctx context.Context, key string, ttl time.Duration) (service.Unlocker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if entry, ok := m.held[key]; ok && now.Before(entry.expires) {
		return nil, fmt.Errorf("%w: %s", common.ErrJobInProgress, key)
	}

	token := uuid.NewString()
	m.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return &memoryUnlocker{locker: m, key: key, token: token}, nil
}

type memoryUnlocker struct {
	locker *Memory
	key    string
	token  string
}

func (u *memoryUnlocker) Unlock(context.Context) error {
	u.locker.mu.Lock()
	defer u.locker.mu.Unlock()

	entry, ok := u.locker.held[u.key]
	if !ok || entry.token != u.token {
		return ErrNotHeld
	}
	delete(u.locker.held, u.key)
	return nil
}
