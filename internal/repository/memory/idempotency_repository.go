package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// IdempotencyRepository remembers responses by Idempotency-Key so a retried
// sendMessage does not append twice.
type IdempotencyRepository struct {
	cache *cache.Cache
}

type pending struct{}

func NewIdempotencyRepository(ttl time.Duration) *IdempotencyRepository {
	// Purge expired keys every 10 minutes
	c := cache.New(ttl, 10*time.Minute)
	return &IdempotencyRepository{
		cache: c,
	}
}

// Claim reserves key. It returns false when the key is already claimed or stored.
func (r *IdempotencyRepository) Claim(key string) bool {
	return r.cache.Add(key, pending{}, cache.DefaultExpiration) == nil
}

// Save stores the response for a claimed key.
func (r *IdempotencyRepository) Save(key string, response interface{}) {
	r.cache.Set(key, response, cache.DefaultExpiration)
}

// Get returns the stored response. A key that is claimed but not yet saved
// reports found=true with done=false.
func (r *IdempotencyRepository) Get(key string) (response interface{}, found bool, done bool) {
	x, found := r.cache.Get(key)
	if !found {
		return nil, false, false
	}
	if _, ok := x.(pending); ok {
		return nil, true, false
	}
	return x, true, true
}

// Release drops a claim whose request failed so the client can retry.
func (r *IdempotencyRepository) Release(key string) {
	r.cache.Delete(key)
}
