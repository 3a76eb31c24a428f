package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/common/config"
)

// Entry is a cached blob
type Entry struct {
	Data        []byte    `json:"data"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (e *Entry) size() int64 {
	return int64(len(e.Data) + len(e.ContentType))
}

// Stats counts cache activity since start
type Stats struct {
	L1Hits    int64 `json:"l1Hits"`
	L2Hits    int64 `json:"l2Hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int64 `json:"entries"`
	Bytes     int64 `json:"bytes"`
}

// Config holds configuration for the cache
type Config struct {
	Redis      redis.Cmdable // nil keeps the cache in memory only
	KeyPrefix  string
	L1TTL      time.Duration
	L2TTL      time.Duration
	MaxL1Bytes int64
}

// MultiLayerCache provides L1 (memory, LRU bounded by bytes) + L2 (Redis) caching
type MultiLayerCache struct {
	logger    *zap.Logger
	l2        redis.Cmdable
	keyPrefix string
	l1TTL     time.Duration
	l2TTL     time.Duration
	maxBytes  int64

	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List // front is most recently used
	size  int64
	stats Stats

	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

type l1Item struct {
	key   string
	entry *Entry
}

// New builds the avatar cache from configuration, connecting to Redis when
// an address is set
func New(cfg config.CacheConfig, logger *zap.Logger) (*MultiLayerCache, error) {
	c := Config{
		KeyPrefix:  cfg.Redis.Prefix,
		L1TTL:      cfg.TTL,
		L2TTL:      cfg.RedisTTL,
		MaxL1Bytes: cfg.MaxBytes,
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to cache redis: %w", err)
		}
		c.Redis = client
	}
	return NewMultiLayerCache(c, logger), nil
}

// NewMultiLayerCache creates a new multi-layer cache instance
func NewMultiLayerCache(cfg Config, logger *zap.Logger) *MultiLayerCache {
	if cfg.L1TTL <= 0 {
		cfg.L1TTL = 10 * time.Minute
	}
	if cfg.L2TTL <= 0 {
		cfg.L2TTL = time.Hour
	}
	if cfg.MaxL1Bytes <= 0 {
		cfg.MaxL1Bytes = 32 << 20
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "wshub:avatar:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &MultiLayerCache{
		logger:    logger.Named("cache"),
		l2:        cfg.Redis,
		keyPrefix: cfg.KeyPrefix,
		l1TTL:     cfg.L1TTL,
		l2TTL:     cfg.L2TTL,
		maxBytes:  cfg.MaxL1Bytes,
		items:     make(map[string]*list.Element),
		lru:       list.New(),
		now:       time.Now,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go c.cleanupLoop(ctx, cfg.L1TTL)
	return c
}

// Get looks in memory first, then in Redis; Redis hits are promoted
func (c *MultiLayerCache) Get(ctx context.Context, key string) (*Entry, bool) {
	if e, ok := c.getL1(key); ok {
		return e, true
	}
	if e, ok := c.getL2(ctx, key); ok {
		c.setL1(key, &Entry{Data: e.Data, ContentType: e.ContentType, ExpiresAt: c.now().Add(c.l1TTL)})
		c.mu.Lock()
		c.stats.L2Hits++
		c.mu.Unlock()
		return e, true
	}
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	return nil, false
}

// Set stores data in both layers
func (c *MultiLayerCache) Set(ctx context.Context, key string, data []byte, contentType string) error {
	now := c.now()
	c.setL1(key, &Entry{Data: data, ContentType: contentType, ExpiresAt: now.Add(c.l1TTL)})
	if c.l2 == nil {
		return nil
	}

	payload, err := json.Marshal(&Entry{Data: data, ContentType: contentType, ExpiresAt: now.Add(c.l2TTL)})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return c.l2.Set(ctx, c.keyPrefix+key, payload, c.l2TTL).Err()
}

// Delete removes key from both layers
func (c *MultiLayerCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	c.mu.Unlock()

	if c.l2 == nil {
		return nil
	}
	return c.l2.Del(ctx, c.keyPrefix+key).Err()
}

// Stats returns a snapshot of the counters
func (c *MultiLayerCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = int64(len(c.items))
	s.Bytes = c.size
	return s
}

// Close stops the cleanup loop and closes the Redis client
func (c *MultiLayerCache) Close() error {
	c.cancel()
	<-c.done
	if closer, ok := c.l2.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *MultiLayerCache) getL1(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	item := el.Value.(*l1Item)
	if !c.now().Before(item.entry.ExpiresAt) {
		c.removeElement(el)
		return nil, false
	}
	c.lru.MoveToFront(el)
	c.stats.L1Hits++
	return item.entry, true
}

func (c *MultiLayerCache) setL1(key string, e *Entry) {
	if e.size() > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	for c.size+e.size() > c.maxBytes && c.lru.Len() > 0 {
		c.removeElement(c.lru.Back())
		c.stats.Evictions++
	}
	c.items[key] = c.lru.PushFront(&l1Item{key: key, entry: e})
	c.size += e.size()
}

func (c *MultiLayerCache) getL2(ctx context.Context, key string) (*Entry, bool) {
	if c.l2 == nil {
		return nil, false
	}
	data, err := c.l2.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Error("failed to get from L2 cache", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Error("failed to unmarshal L2 cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !c.now().Before(e.ExpiresAt) {
		c.l2.Del(ctx, c.keyPrefix+key)
		return nil, false
	}
	return &e, true
}

// removeElement must be called with mu held
func (c *MultiLayerCache) removeElement(el *list.Element) {
	item := el.Value.(*l1Item)
	c.lru.Remove(el)
	delete(c.items, item.key)
	c.size -= item.entry.size()
}

func (c *MultiLayerCache) cleanupLoop(ctx context.Context, every time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanupExpired()
		}
	}
}

func (c *MultiLayerCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*l1Item).entry.ExpiresAt) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	if removed > 0 {
		c.logger.Debug("cleaned up expired cache entries", zap.Int("count", removed))
	}
}
