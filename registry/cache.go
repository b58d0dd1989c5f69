package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
	"github.com/scraperwall/fgblock/data"
	"github.com/scraperwall/fgblock/store"
	log "github.com/sirupsen/logrus"
)

// Namespace is the KVStore namespace looked up registry data is stored in
const Namespace = "rl"

// Cache keeps the results of a Lookuper in memory and, if a KVStore is given,
// across runs. Failed lookups are not cached.
type Cache struct {
	lookuper Lookuper
	kv       store.KVStore
	ttl      time.Duration
	mem      *ttlcache.Cache
}

// NewCache wraps l. kv may be nil
func NewCache(l Lookuper, kv store.KVStore, ttl time.Duration) *Cache {
	mem := ttlcache.NewCache()
	mem.SkipTTLExtensionOnHit(true)
	if ttl > 0 {
		mem.SetTTL(ttl)
	}

	return &Cache{
		lookuper: l,
		kv:       kv,
		ttl:      ttl,
		mem:      mem,
	}
}

// Lookup returns the cached registry data for addr or asks the wrapped Lookuper
func (c *Cache) Lookup(ctx context.Context, addr netip.Addr) (data.Registry, error) {
	key := addr.Unmap().String()

	if v, err := c.mem.Get(key); err == nil {
		return v.(data.Registry), nil
	}

	if reg, ok := c.stored(key); ok {
		c.mem.Set(key, reg)
		return reg, nil
	}

	reg, err := c.lookuper.Lookup(ctx, addr)
	if err != nil {
		return data.Registry{}, err
	}

	c.mem.Set(key, reg)
	c.store(key, reg)

	return reg, nil
}

func (c *Cache) stored(key string) (data.Registry, bool) {
	if c.kv == nil {
		return data.Registry{}, false
	}

	raw, err := c.kv.Get([]byte(Namespace), []byte(key))
	if err != nil {
		if !errors.Is(err, c.kv.ErrNotFound()) {
			log.Warnf("kvstore lookup of %s failed: %s", key, err)
		}
		return data.Registry{}, false
	}

	var reg data.Registry
	if err := json.Unmarshal(raw, &reg); err != nil {
		log.Warnf("invalid cache entry for %s: %s", key, err)
		return data.Registry{}, false
	}

	log.Tracef("kvstore %s = %s", key, reg.Comment())
	return reg, true
}

func (c *Cache) store(key string, reg data.Registry) {
	if c.kv == nil {
		return
	}

	raw, err := json.Marshal(reg)
	if err != nil {
		log.Errorf("failed to encode registry data for %s: %s", key, err)
		return
	}

	if c.ttl > 0 {
		err = c.kv.SetEx([]byte(Namespace), []byte(key), raw, c.ttl)
	} else {
		err = c.kv.Set([]byte(Namespace), []byte(key), raw)
	}
	if err != nil {
		log.Errorf("failed to write %s to the cache: %s", key, err)
	}
}

// Purge removes addr from both cache levels
func (c *Cache) Purge(addr netip.Addr) error {
	key := addr.Unmap().String()
	c.mem.Remove(key)

	if c.kv == nil {
		return nil
	}
	err := c.kv.Remove([]byte(Namespace), []byte(key))
	if errors.Is(err, c.kv.ErrNotFound()) {
		return nil
	}
	return err
}

// Close stops the in-memory cache
func (c *Cache) Close() {
	c.mem.Close()
}
