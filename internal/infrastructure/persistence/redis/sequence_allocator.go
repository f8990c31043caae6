package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bitcollege/registrar/internal/domain/numbering"
)

// allocateScript initialises the counter to the seed on first use and then
// increments it, returning the number just taken. KEYS[1] counter, ARGV[1] seed.
var allocateScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	redis.call("SET", KEYS[1], ARGV[1])
end
return redis.call("INCR", KEYS[1]) - 1
`)

// SequenceAllocator implements numbering.Allocator with a Lua script, which
// Redis runs atomically. The key holds the next available number.
type SequenceAllocator struct {
	cache *Cache
}

// NewSequenceAllocator creates a new SequenceAllocator.
func NewSequenceAllocator(cache *Cache) *SequenceAllocator {
	return &SequenceAllocator{cache: cache}
}

// AllocateNext returns the next number of the category, the seed on first use.
func (a *SequenceAllocator) AllocateNext(ctx context.Context, category numbering.Category) (int64, error) {
	seed, err := category.Seed()
	if err != nil {
		return 0, err
	}

	key := a.cache.SequenceKey(string(category))
	n, err := allocateScript.Run(ctx, a.cache.Client(), []string{key}, seed).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s: %w", category, err)
	}
	return n, nil
}

// Peek returns the number the next allocation would issue without taking it.
func (a *SequenceAllocator) Peek(ctx context.Context, category numbering.Category) (int64, error) {
	seed, err := category.Seed()
	if err != nil {
		return 0, err
	}

	n, err := a.cache.Client().Get(ctx, a.cache.SequenceKey(string(category))).Int64()
	if errors.Is(err, redis.Nil) {
		return seed, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", category, err)
	}
	return n, nil
}

var _ numbering.Allocator = (*SequenceAllocator)(nil)
