package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/pos_backend/utils"
)

var ErrLockNotHeld = errors.New("lock not held")

// Lease is a held lock. Release is safe to call after expiry.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker makes a single non-blocking attempt to take resource for ttl.
// A held resource yields utils.ErrLockNotObtained.
type Locker interface {
	TryAcquire(ctx context.Context, resource string, ttl time.Duration) (Lease, error)
}

func settlementLockKey(transactionId string) string {
	return "lock:transaction:" + transactionId
}

type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(client *redislock.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, resource string, ttl time.Duration) (Lease, error) {
	if l.client == nil {
		return nil, utils.Infrastructure(errors.New("service not ready (redis lock not initialized)"))
	}
	// nil options: no retry strategy, one attempt only
	lock, err := l.client.Obtain(ctx, resource, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, utils.ErrLockNotObtained
	}
	if err != nil {
		return nil, utils.Infrastructure(err)
	}
	return lock, nil
}

// LocalLocker is an in-process Locker with expiring holds, for single
// instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localHold
	token uint64
	now   func() time.Time
}

type localHold struct {
	token   uint64
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localHold), now: time.Now}
}

func (l *LocalLocker) TryAcquire(_ context.Context, resource string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.held[resource]; ok && now.Before(h.expires) {
		return nil, utils.ErrLockNotObtained
	}
	l.token++
	l.held[resource] = localHold{token: l.token, expires: now.Add(ttl)}
	return &localLease{locker: l, resource: resource, token: l.token}, nil
}

type localLease struct {
	locker   *LocalLocker
	resource string
	token    uint64
}

func (lease *localLease) Release(_ context.Context) error {
	l := lease.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.held[lease.resource]
	if !ok || h.token != lease.token {
		return ErrLockNotHeld
	}
	delete(l.held, lease.resource)
	return nil
}
