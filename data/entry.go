package data

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Kind tells whether an Entry is a single host or an explicit subnet
type Kind int

const (
	// Host is a single address, a /32 for IPv4 or a /128 for IPv6
	Host Kind = iota
	// Subnet is an explicit network with a prefix shorter than the address length
	Subnet
)

func (k Kind) String() string {
	if k == Host {
		return "host"
	}
	return "subnet"
}

// ErrEmptyEntry is returned when an empty string is parsed as an Entry
var ErrEmptyEntry = errors.New("empty entry")

// Entry is a single blocklist entry. Addr is always the network address for Bits.
type Entry struct {
	Kind Kind
	Addr netip.Addr
	Bits int
}

// NewHost creates a host entry for addr
func NewHost(addr netip.Addr) Entry {
	addr = addr.Unmap().WithZone("")
	return Entry{
		Kind: Host,
		Addr: addr,
		Bits: addr.BitLen(),
	}
}

// NewSubnet creates an entry for the network p. Host bits are zeroed and
// a prefix covering a single address becomes a host entry.
func NewSubnet(p netip.Prefix) Entry {
	addr, bits := p.Addr().WithZone(""), p.Bits()
	if addr.Is4In6() && bits >= 96 {
		addr, bits = addr.Unmap(), bits-96
	}

	if bits >= addr.BitLen() {
		return NewHost(addr)
	}

	masked := netip.PrefixFrom(addr, bits).Masked()
	return Entry{
		Kind: Subnet,
		Addr: masked.Addr(),
		Bits: bits,
	}
}

// ParseEntry parses a literal IP address or CIDR. CIDRs are normalized
// non-strictly, so 10.1.2.3/8 becomes 10.0.0.0/8.
func ParseEntry(s string) (Entry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Entry{}, ErrEmptyEntry
	}

	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return Entry{}, err
		}
		if addr.Zone() != "" {
			return Entry{}, fmt.Errorf("%s: zoned addresses are not allowed", s)
		}
		return NewHost(addr), nil
	}

	p, err := netip.ParsePrefix(s)
	if err != nil {
		return Entry{}, err
	}
	return NewSubnet(p), nil
}

// MustParseEntry is like ParseEntry but panics on invalid input
func MustParseEntry(s string) Entry {
	e, err := ParseEntry(s)
	if err != nil {
		panic(err)
	}
	return e
}

// Prefix returns the network the entry denotes
func (e Entry) Prefix() netip.Prefix {
	return netip.PrefixFrom(e.Addr, e.Bits)
}

// String returns the canonical form addr/bits which is also the EntrySet key
func (e Entry) String() string {
	return e.Prefix().String()
}

// IsHost reports whether the entry is a single address
func (e Entry) IsHost() bool {
	return e.Kind == Host
}

// Is4 reports whether the entry is an IPv4 host or network
func (e Entry) Is4() bool {
	return e.Addr.Is4()
}

// Contains reports whether ip is part of the entry
func (e Entry) Contains(ip netip.Addr) bool {
	return e.Prefix().Contains(ip.Unmap())
}

// MarshalText implements encoding.TextMarshaler
func (e Entry) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (e *Entry) UnmarshalText(text []byte) error {
	parsed, err := ParseEntry(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// AnnotatedEntry is an entry together with its registry comment
type AnnotatedEntry struct {
	Entry   Entry  `json:"entry"`
	Comment string `json:"comment,omitempty"`
}

// EntrySet maps the canonical entry string to the annotated entry
type EntrySet map[string]AnnotatedEntry

// Add inserts or replaces an entry
func (s EntrySet) Add(e Entry, comment string) {
	s[e.String()] = AnnotatedEntry{Entry: e, Comment: comment}
}

// Has reports whether the set contains e
func (s EntrySet) Has(e Entry) bool {
	_, ok := s[e.String()]
	return ok
}

// Entries returns all entries of the set in no particular order
func (s EntrySet) Entries() []Entry {
	res := make([]Entry, 0, len(s))
	for _, ae := range s {
		res = append(res, ae.Entry)
	}
	return res
}
