package fgblock

import (
	"net/netip"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/scraperwall/fgblock/data"
	log "github.com/sirupsen/logrus"
	"go4.org/netipx"
)

const groupBits = 24

// Aggregator groups dense clusters of IPv4 hosts into /24 networks
type Aggregator struct {
	// Threshold is the number of distinct hosts a /24 needs to be published as a network
	Threshold int

	// Allowlist networks are never covered by an aggregated /24. May be nil
	Allowlist *Allowlist
}

// Aggregate returns the explicit subnets, the aggregated /24 networks and the
// remaining hosts in canonical order. A /24 that overlaps an explicit subnet is
// never aggregated so a listed network doesn't get widened or duplicated. The
// same goes for a /24 that contains allowlisted addresses: its hosts stay hosts.
// Hosts that are part of an explicit subnet are dropped.
func (a *Aggregator) Aggregate(entries []data.Entry) []data.Entry {
	threshold := a.Threshold
	if threshold < 1 {
		threshold = 1
	}

	result := make(data.EntrySet, len(entries))
	groups := treemap.NewWith(entryComparator)

	var sb netipx.IPSetBuilder
	for _, e := range entries {
		if e.IsHost() {
			continue
		}
		sb.AddPrefix(e.Prefix())
		result.Add(e, "")
	}
	subnets, err := sb.IPSet()
	if err != nil {
		// the builder only fails for invalid prefixes which parsed entries can't be
		log.Errorf("failed to build the subnet set: %s", err)
		subnets = &netipx.IPSet{}
	}

	allowed := a.Allowlist.IPSet()

	covered := 0
	for _, e := range entries {
		if !e.IsHost() {
			continue
		}
		if subnets.Contains(e.Addr) {
			covered++
			continue
		}
		if !e.Is4() {
			result.Add(e, "")
			continue
		}

		group := data.NewSubnet(netip.PrefixFrom(e.Addr, groupBits))
		hosts := map[netip.Addr]struct{}{}
		if v, ok := groups.Get(group); ok {
			hosts = v.(map[netip.Addr]struct{})
		}
		hosts[e.Addr] = struct{}{}
		groups.Put(group, hosts)
	}

	aggregated, suppressed := 0, 0
	it := groups.Iterator()
	for it.Next() {
		group := it.Key().(data.Entry)
		hosts := it.Value().(map[netip.Addr]struct{})

		if len(hosts) >= threshold {
			switch {
			case subnets.OverlapsPrefix(group.Prefix()):
				log.Debugf("%s has %d hosts but overlaps a listed network", group, len(hosts))
				suppressed++
			case allowed.OverlapsPrefix(group.Prefix()):
				log.Debugf("%s has %d hosts but contains allowlisted addresses", group, len(hosts))
				suppressed++
			default:
				log.Tracef("grouping %d hosts into %s", len(hosts), group)
				result.Add(group, "")
				aggregated++
				continue
			}
		}

		for addr := range hosts {
			result.Add(data.NewHost(addr), "")
		}
	}

	log.Infof("aggregated %d /24 networks (%d suppressed, %d hosts in listed networks). %d entries -> %d", aggregated, suppressed, covered, len(entries), len(result))
	return Sort(result).Entries()
}
