package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// JSON caches JSON encoded values in a fiber.Storage under a key prefix.
type JSON struct {
	store  fiber.Storage
	prefix string
	ttl    time.Duration
}

// New returns a JSON cache. A nil store disables caching.
func New(store fiber.Storage, prefix string, ttl time.Duration) *JSON {
	return &JSON{store: store, prefix: prefix, ttl: ttl}
}

// Get decodes the cached value into v and reports whether it was present.
func (c *JSON) Get(key string, v any) (bool, error) {
	if c == nil || c.store == nil {
		return false, nil
	}

	raw, err := c.store.Get(c.prefix + key)
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if len(raw) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}

	return true, nil
}

// Set stores v for the cache TTL.
func (c *JSON) Set(key string, v any) error {
	if c == nil || c.store == nil {
		return nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	return c.store.Set(c.prefix+key, raw, c.ttl)
}

// Invalidate drops a cached key.
func (c *JSON) Invalidate(key string) {
	if c == nil || c.store == nil {
		return
	}

	if err := c.store.Delete(c.prefix + key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache invalidate failed")
	}
}

// Remember returns the cached value for key, or calls load and caches its result.
// Storage failures are logged and fall through to load.
func Remember[T any](c *JSON, key string, load func() (T, error)) (T, error) {
	var v T

	ok, err := c.Get(key, &v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	if ok {
		return v, nil
	}

	v, err = load()
	if err != nil {
		return v, err
	}

	if err := c.Set(key, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}

	return v, nil
}
