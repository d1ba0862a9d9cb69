package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
)

type Category string

const (
	CategoryRaw     Category = "raw"
	CategoryIndex   Category = "index"
	CategoryDerived Category = "derived"
)

var Categories = []Category{CategoryRaw, CategoryIndex, CategoryDerived}

// Key derives the stable cache key for a source identifier. All three
// categories share the scheme, so one source maps to the same key in each
// namespace.
func Key(source string) string {
	sum := md5.Sum([]byte(source))
	return hex.EncodeToString(sum[:])
}

// envelope wraps every payload with its write time so expiry works the same
// on every store backend.
type envelope struct {
	WrittenAt int64           `json:"written_at"`
	Payload   json.RawMessage `json:"payload"`
}

// ContentCache is the shared persistence for the three content classes.
// Expiry is lazy: a read past TTL deletes the stale blob and reports absent;
// there is no background sweep.
type ContentCache struct {
	store Store
	ttl   map[Category]time.Duration
	now   func() time.Time
}

func New(store Store, rawTTL, indexTTL, derivedTTL time.Duration) *ContentCache {
	return &ContentCache{
		store: store,
		ttl: map[Category]time.Duration{
			CategoryRaw:     rawTTL,
			CategoryIndex:   indexTTL,
			CategoryDerived: derivedTTL,
		},
		now: time.Now,
	}
}

// Get loads the cached payload for a source into dst. False means absent,
// expired or undecodable.
func (c *ContentCache) Get(ctx context.Context, category Category, sourceKey string, dst interface{}) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("category", string(category)))
	key := Key(sourceKey)
	data, err := c.store.Load(ctx, string(category), key)
	if err != nil {
		if !appErr.IsNotFound(err) {
			logger.Warn("cache load failed", zap.Error(err))
		}
		return false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Warn("cache entry corrupted, dropping", zap.Error(err))
		_ = c.store.Delete(ctx, string(category), key)
		return false
	}
	age := c.now().Sub(time.Unix(env.WrittenAt, 0))
	if age > c.ttl[category] {
		logger.Debug("cache entry expired", zap.Duration("age", age))
		_ = c.store.Delete(ctx, string(category), key)
		return false
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		logger.Warn("cache payload decode failed, dropping", zap.Error(err))
		_ = c.store.Delete(ctx, string(category), key)
		return false
	}
	logger.Info("cache hit")
	return true
}

// Set persists a payload for a source. Failures are logged, not raised.
func (c *ContentCache) Set(ctx context.Context, category Category, sourceKey string, payload interface{}) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("category", string(category)))
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error("cache payload encode failed", zap.Error(err))
		return false
	}
	data, err := json.Marshal(envelope{WrittenAt: c.now().Unix(), Payload: raw})
	if err != nil {
		logger.Error("cache envelope encode failed", zap.Error(err))
		return false
	}
	if err := c.store.Save(ctx, string(category), Key(sourceKey), data); err != nil {
		logger.Error("cache save failed", zap.Error(err))
		return false
	}
	logger.Info("saved to cache")
	return true
}

// Invalidate removes every cached artifact for one source across all
// categories.
func (c *ContentCache) Invalidate(ctx context.Context, sourceKey string) {
	key := Key(sourceKey)
	for _, category := range Categories {
		if err := c.store.Delete(ctx, string(category), key); err != nil {
			logutil.GetLogger(ctx).Warn("cache invalidate failed",
				zap.String("category", string(category)), zap.Error(err))
		}
	}
}

// Clear wipes one category namespace.
func (c *ContentCache) Clear(ctx context.Context, category Category) error {
	return c.store.Clear(ctx, string(category))
}

// ClearAll wipes every namespace. Destructive, operator triggered.
func (c *ContentCache) ClearAll(ctx context.Context) error {
	for _, category := range Categories {
		if err := c.store.Clear(ctx, string(category)); err != nil {
			return err
		}
	}
	return nil
}
