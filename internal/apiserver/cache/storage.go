package cache

import (
	"bytes"
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/storage"
)

// CachedStorage serves Get from the cache and falls back to the wrapped
// storage. Avatar keys are never reused, so entries need no invalidation
// beyond Delete.
type CachedStorage struct {
	inner  storage.Storage
	cache  *MultiLayerCache
	logger *zap.Logger
}

var _ storage.Storage = (*CachedStorage)(nil)

func NewCachedStorage(inner storage.Storage, cache *MultiLayerCache, logger *zap.Logger) *CachedStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStorage{inner: inner, cache: cache, logger: logger.Named("cache.storage")}
}

func (s *CachedStorage) Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) error {
	if err := s.inner.Put(ctx, key, body, contentType); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to drop cached object", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (s *CachedStorage) Get(ctx context.Context, key string) (*storage.Object, error) {
	if e, ok := s.cache.Get(ctx, key); ok {
		return objectFrom(e.Data, e.ContentType), nil
	}

	obj, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, data, obj.ContentType); err != nil {
		s.logger.Warn("failed to cache object", zap.String("key", key), zap.Error(err))
	}
	return objectFrom(data, obj.ContentType), nil
}

func (s *CachedStorage) Delete(ctx context.Context, key string) error {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to drop cached object", zap.String("key", key), zap.Error(err))
	}
	return s.inner.Delete(ctx, key)
}

func objectFrom(data []byte, contentType string) *storage.Object {
	return &storage.Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: contentType,
		Size:        int64(len(data)),
	}
}
