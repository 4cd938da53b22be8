package service

import (
	"context"
	"sync"
	"time"

	"github.com/linkcut/linkcut/internal/entity"
	"github.com/stretchr/testify/mock"
)

type MockURLRepository struct {
	mock.Mock
}

func (r *MockURLRepository) Save(ctx context.Context, shortCode, originalURL string, expiresAt *time.Time, metadata map[string]any) (*entity.URL, error) {
	args := r.Called(ctx, shortCode, originalURL, expiresAt, metadata)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) CodeExists(ctx context.Context, shortCode string) (bool, error) {
	args := r.Called(ctx, shortCode)
	return args.Bool(0), args.Error(1)
}

func (r *MockURLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := r.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) Deactivate(ctx context.Context, shortCode string) error {
	args := r.Called(ctx, shortCode)
	return args.Error(0)
}

type MockClickRepository struct {
	mock.Mock
}

func (r *MockClickRepository) CountByShortCode(ctx context.Context, shortCode string) (int64, error) {
	args := r.Called(ctx, shortCode)
	return args.Get(0).(int64), args.Error(1)
}

type MockURLCache struct {
	mock.Mock
}

func (c *MockURLCache) Get(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := c.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (c *MockURLCache) Set(ctx context.Context, url *entity.URL) error {
	args := c.Called(ctx, url)
	return args.Error(0)
}

func (c *MockURLCache) Delete(ctx context.Context, shortCode string) error {
	args := c.Called(ctx, shortCode)
	return args.Error(0)
}

type MockClickEmitter struct {
	mock.Mock
}

func (e *MockClickEmitter) Emit(event entity.ClickEvent) {
	e.Called(event)
}

// fakeCache is an in-memory URLCache with hit/miss counters, used to observe
// that repeated resolutions are served from cache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*entity.URL
	hits    int
	misses  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*entity.URL)}
}

func (c *fakeCache) Get(_ context.Context, shortCode string) (*entity.URL, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	url, ok := c.entries[shortCode]
	if !ok {
		c.misses++
		return nil, entity.ErrCacheMiss
	}

	c.hits++
	return url, nil
}

func (c *fakeCache) Set(_ context.Context, url *entity.URL) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url.ShortCode] = url
	return nil
}

func (c *fakeCache) Delete(_ context.Context, shortCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, shortCode)
	return nil
}

func (c *fakeCache) stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hits, c.misses
}

func (c *fakeCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
