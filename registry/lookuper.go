package registry

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/scraperwall/fgblock/config"
	"github.com/scraperwall/fgblock/data"
	"github.com/scraperwall/fgblock/store"
	log "github.com/sirupsen/logrus"
)

// Lookuper returns registry metadata for an address
type Lookuper interface {
	Lookup(ctx context.Context, addr netip.Addr) (data.Registry, error)
}

// LookuperFunc is an adapter to use a plain function as Lookuper
type LookuperFunc func(ctx context.Context, addr netip.Addr) (data.Registry, error)

// Lookup calls f(ctx, addr)
func (f LookuperFunc) Lookup(ctx context.Context, addr netip.Addr) (data.Registry, error) {
	return f(ctx, addr)
}

// None never returns any metadata
type None struct{}

// Lookup returns an empty Registry
func (None) Lookup(context.Context, netip.Addr) (data.Registry, error) {
	return data.Registry{}, nil
}

// New creates the Lookuper for the configured provider. Lookups are cached in memory
// and, if kv is not nil, in kv as well. The returned function releases the provider's resources.
func New(cfg config.Registry, kv store.KVStore) (Lookuper, func() error, error) {
	var (
		provider Lookuper
		closer   = func() error { return nil }
	)

	switch cfg.Provider {
	case config.ProviderNone, "":
		log.Info("registry lookups are disabled")
		return None{}, closer, nil

	case config.ProviderIPWhois:
		provider = NewIPWhois(cfg.URL, cfg.Timeout())

	case config.ProviderCymru:
		provider = NewCymru(cfg.DNSServer, cfg.Timeout())

	case config.ProviderGeoDB:
		geo, err := NewGeoDB(cfg.GeoIPDBFile, cfg.ASNDBFile)
		if err != nil {
			return nil, nil, err
		}
		provider, closer = geo, geo.Close

	default:
		return nil, nil, fmt.Errorf("unknown registry provider %q", cfg.Provider)
	}

	log.Infof("looking up registry data with %s", cfg.Provider)

	cache := NewCache(provider, kv, cfg.CacheTTL())
	return cache, func() error {
		cache.Close()
		return closer()
	}, nil
}
