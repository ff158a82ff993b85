package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeWriter struct {
	mu       sync.Mutex
	adds     []*redis.XAddArgs
	expires  map[string]time.Duration
	addErr   error
	attempts int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{expires: map[string]time.Duration{}}
}

func (f *fakeWriter) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.addErr != nil {
		return redis.NewStringResult("", f.addErr)
	}
	f.adds = append(f.adds, a)
	return redis.NewStringResult("1-0", nil)
}

func (f *fakeWriter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeWriter) setAddErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addErr = err
}

func (f *fakeWriter) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeWriter) addCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.adds)
}
