package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Lock serializes cron cycles across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type leaseStore interface {
	AcquireLease(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, token string) (bool, error)
}

// RedisLock holds a named lease. The TTL bounds how long a crashed holder
// keeps other replicas out.
type RedisLock struct {
	store leaseStore
	name  string
	ttl   time.Duration
	token string
}

func NewRedisLock(store leaseStore, name string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("lease store required for lock")
	case name == "":
		return nil, errors.New("lock name is required")
	case ttl <= 0:
		return nil, errors.New("lock ttl must be positive")
	}
	return &RedisLock{store: store, name: name, ttl: ttl}, nil
}

// Acquire claims the lease with a fresh token. The token names the host so
// a stuck lease can be traced back to its replica.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := holderToken()
	ok, err := l.store.AcquireLease(ctx, l.name, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.name, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release is a no-op unless Acquire succeeded since the last Release.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if _, err := l.store.ReleaseLease(ctx, l.name, token); err != nil {
		return fmt.Errorf("release lease %s: %w", l.name, err)
	}
	return nil
}

func holderToken() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + "/" + uuid.NewString()
}
