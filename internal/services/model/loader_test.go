package model

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPXEngine/pkg/logger"
)

const validPayload = `{
	"version": "2026-03-01",
	"intercept": -0.42,
	"features": {"confluenceScore": 0.31, "netGex": -0.0000012}
}`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 23, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLoader(t *testing.T, clock *fakeClock, fetch FetchFunc) *Loader {
	t.Helper()
	cfg := Config{StorageBaseURL: "https://storage.example.com", Bucket: "models"}
	return NewLoader(cfg, fetch, logger.Nop(), WithClock(clock.Now))
}

func TestLoadCachesValidModel(t *testing.T) {
	clock := newFakeClock()
	var calls int32
	l := newLoader(t, clock, func(ctx context.Context, url string) (*FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "https://storage.example.com/storage/v1/object/public/models/confidence-model/latest.json", url)
		return &FetchResult{Body: []byte(validPayload), StatusCode: 200}, nil
	})

	m := l.Load(context.Background(), false)
	require.NotNil(t, m)
	assert.Equal(t, "2026-03-01", m.Version)
	assert.InDelta(t, -0.42, m.Intercept, 1e-9)

	// fresh cache, no second fetch
	m2 := l.Load(context.Background(), false)
	require.NotNil(t, m2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// stale cache refetches
	clock.Advance(25 * time.Hour)
	l.Load(context.Background(), false)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBackoffWindowSuppressesFetches(t *testing.T) {
	clock := newFakeClock()
	var calls int32
	l := newLoader(t, clock, func(ctx context.Context, url string) (*FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	})

	assert.Nil(t, l.Load(context.Background(), false))
	assert.Nil(t, l.Load(context.Background(), false))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call inside backoff must not fetch")

	// base backoff is 10 minutes; past it the loader tries again
	clock.Advance(11 * time.Minute)
	l.Load(context.Background(), false)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBackoffDoublesPerFailure(t *testing.T) {
	clock := newFakeClock()
	var calls int32
	l := newLoader(t, clock, func(ctx context.Context, url string) (*FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	})

	l.Load(context.Background(), false) // failure 1, backoff 10m
	clock.Advance(11 * time.Minute)
	l.Load(context.Background(), false) // failure 2, backoff 20m
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))

	clock.Advance(11 * time.Minute)
	l.Load(context.Background(), false)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "still inside doubled window")

	clock.Advance(10 * time.Minute)
	l.Load(context.Background(), false)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientErrorExtendsBackoffToRefreshWindow(t *testing.T) {
	clock := newFakeClock()
	var calls int32
	l := newLoader(t, clock, func(ctx context.Context, url string) (*FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		return &FetchResult{StatusCode: 404}, nil
	})

	assert.Nil(t, l.Load(context.Background(), false))

	clock.Advance(6 * time.Hour)
	l.Load(context.Background(), false)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "404 backoff extends to the refresh window")

	clock.Advance(19 * time.Hour)
	l.Load(context.Background(), false)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvalidPayloadNotCached(t *testing.T) {
	clock := newFakeClock()
	l := newLoader(t, clock, func(ctx context.Context, url string) (*FetchResult, error) {
		return &FetchResult{Body: []byte(`{"version":"","intercept":1,"features":{}}`), StatusCode: 200}, nil
	})

	assert.Nil(t, l.Load(context.Background(), false), "empty version must be rejected")
}

func TestFailureKeepsLastGoodModel(t *testing.T) {
	clock := newFakeClock()
	var fail atomic.Bool
	l := newLoader(t, clock, func(ctx context.Context, url string) (*FetchResult, error) {
		if fail.Load() {
			return nil, errors.New("gateway timeout")
		}
		return &FetchResult{Body: []byte(validPayload), StatusCode: 200}, nil
	})

	require.NotNil(t, l.Load(context.Background(), false))

	fail.Store(true)
	m := l.Load(context.Background(), true)
	require.NotNil(t, m, "forced refresh failure must return last good model")
	assert.Equal(t, "2026-03-01", m.Version)
}

func TestSingleFlightConcurrentCallers(t *testing.T) {
	clock := newFakeClock()
	var calls int32
	release := make(chan struct{})
	l := newLoader(t, clock, func(ctx context.Context, url string) (*FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &FetchResult{Body: []byte(validPayload), StatusCode: 200}, nil
	})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.Load(context.Background(), false) != nil
		}(i)
	}

	// let all goroutines reach the loader before releasing the fetch
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent callers share one fetch")
	for i, ok := range results {
		assert.True(t, ok, "caller %d should see the fetched model", i)
	}
}
