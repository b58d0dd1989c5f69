package fgblock

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/scraperwall/fgblock/data"
	log "github.com/sirupsen/logrus"
	"go4.org/netipx"
)

// Allowlist contains networks that must never be published
type Allowlist struct {
	filename  string
	rules     []allowlistNetwork
	set       *netipx.IPSet
	UpdatedAt time.Time
	mutex     sync.RWMutex
}

// AllowlistRules is the content of the allowlist TOML file
type AllowlistRules struct {
	IP   []AllowlistRule
	CIDR []AllowlistRule
}

// AllowlistRule is a single allowlist rule
type AllowlistRule struct {
	Pattern     string
	Description string
}

type allowlistNetwork struct {
	Prefix      netip.Prefix
	Description string
}

// NewAllowlist loads the rules from filename. An empty filename results in an
// allowlist that doesn't filter anything
func NewAllowlist(filename string) (*Allowlist, error) {
	al := &Allowlist{
		filename: filename,
		set:      &netipx.IPSet{},
	}

	if filename == "" {
		return al, nil
	}

	if err := al.Load(); err != nil {
		return nil, err
	}
	return al, nil
}

// Load reads the rules from the allowlist file
func (al *Allowlist) Load() error {
	raw, err := os.ReadFile(al.filename)
	if err != nil {
		return err
	}
	return al.Parse(raw)
}

// Parse replaces the current rules with the rules in raw
func (al *Allowlist) Parse(raw []byte) error {
	var rules AllowlistRules
	if err := toml.Unmarshal(raw, &rules); err != nil {
		return err
	}

	networks := make([]allowlistNetwork, 0, len(rules.IP)+len(rules.CIDR))
	var sb netipx.IPSetBuilder

	// IPs
	for _, r := range rules.IP {
		addr, err := netip.ParseAddr(strings.TrimSpace(r.Pattern))
		if err != nil {
			return fmt.Errorf("can't parse allowlist IP %s (%s): %s", r.Pattern, r.Description, err)
		}
		p := data.NewHost(addr).Prefix()
		sb.AddPrefix(p)
		networks = append(networks, allowlistNetwork{Prefix: p, Description: r.Description})
	}

	// CIDR
	for _, r := range rules.CIDR {
		cidr := strings.TrimSpace(strings.Replace(r.Pattern, `\`, "", -1))
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return fmt.Errorf("can't parse allowlist CIDR %s (%s): %s", r.Pattern, r.Description, err)
		}
		p = data.NewSubnet(p).Prefix()
		sb.AddPrefix(p)
		networks = append(networks, allowlistNetwork{Prefix: p, Description: r.Description})
	}

	set, err := sb.IPSet()
	if err != nil {
		return err
	}

	al.mutex.Lock()
	al.rules = networks
	al.set = set
	al.UpdatedAt = time.Now()
	al.mutex.Unlock()

	log.Infof("allowlist rules loaded successfully: %d networks", len(networks))
	return nil
}

// IsAllowlisted reports whether ip is part of an allowlisted network and returns the rule's description
func (al *Allowlist) IsAllowlisted(ip netip.Addr) (bool, string) {
	if al == nil {
		return false, ""
	}

	ip = ip.Unmap()

	al.mutex.RLock()
	defer al.mutex.RUnlock()

	if !al.set.Contains(ip) {
		return false, ""
	}
	for _, r := range al.rules {
		if r.Prefix.Contains(ip) {
			return true, r.Description
		}
	}
	return true, ""
}

// Filter removes allowlisted hosts and cuts allowlisted networks out of subnets.
// A subnet that overlaps the allowlist is replaced by the networks that cover
// the rest of it. dropped contains every entry that was removed or split.
func (al *Allowlist) Filter(entries []data.Entry) (kept, dropped []data.Entry) {
	if al == nil {
		return entries, nil
	}

	al.mutex.RLock()
	defer al.mutex.RUnlock()

	kept = make([]data.Entry, 0, len(entries))
	for _, e := range entries {
		p := e.Prefix()
		if !al.set.OverlapsPrefix(p) {
			kept = append(kept, e)
			continue
		}
		dropped = append(dropped, e)

		rule := al.rule(p)
		if e.IsHost() {
			log.Infof("%s is allowlisted: %s", e, rule)
			continue
		}

		var sb netipx.IPSetBuilder
		sb.AddPrefix(p)
		sb.RemoveSet(al.set)
		rest, err := sb.IPSet()
		if err != nil {
			log.Errorf("can't remove the allowlisted networks from %s, dropping it: %s", e, err)
			continue
		}

		parts := rest.Prefixes()
		if len(parts) == 0 {
			log.Infof("%s is allowlisted: %s", e, rule)
			continue
		}
		for _, part := range parts {
			kept = append(kept, data.NewSubnet(part))
		}
		log.Warnf("%s overlaps the allowlist (%s) and is published as %d networks", e, rule, len(parts))
	}

	return kept, dropped
}

// IPSet returns the allowlisted addresses
func (al *Allowlist) IPSet() *netipx.IPSet {
	if al == nil {
		return &netipx.IPSet{}
	}

	al.mutex.RLock()
	defer al.mutex.RUnlock()
	return al.set
}

func (al *Allowlist) rule(p netip.Prefix) string {
	for _, r := range al.rules {
		if r.Prefix.Overlaps(p) {
			return r.Description
		}
	}
	return ""
}

// Len returns the number of allowlist rules
func (al *Allowlist) Len() int {
	if al == nil {
		return 0
	}

	al.mutex.RLock()
	defer al.mutex.RUnlock()
	return len(al.rules)
}

// Watch reloads the rules whenever the allowlist file changes, until ctx is done
func (al *Allowlist) Watch(ctx context.Context) error {
	if al == nil || al.filename == "" {
		return nil
	}

	return WatchFiles(ctx, []string{al.filename}, func(string) {
		if err := al.Load(); err != nil {
			log.Errorf("failed to reload the allowlist, keeping the current rules: %s", err)
		}
	})
}
