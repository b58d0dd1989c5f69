package fgblock

import (
	"sort"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/scraperwall/fgblock/data"
)

// Compare orders entries by prefix length and then by network address.
// IPv4 addresses sort before IPv6 addresses of the same prefix length.
func Compare(a, b data.Entry) int {
	switch {
	case a.Bits < b.Bits:
		return -1
	case a.Bits > b.Bits:
		return 1
	}
	return a.Addr.Compare(b.Addr)
}

func entryComparator(a, b interface{}) int {
	return Compare(a.(data.Entry), b.(data.Entry))
}

// SortEntries returns a sorted copy of entries
func SortEntries(entries []data.Entry) []data.Entry {
	sorted := make([]data.Entry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		return Compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// OrderedEntries is an EntrySet in canonical order
type OrderedEntries struct {
	m *treemap.Map
}

// Sort returns the entries of set in canonical order. set is not modified
func Sort(set data.EntrySet) *OrderedEntries {
	m := treemap.NewWith(entryComparator)
	for _, ae := range set {
		m.Put(ae.Entry, ae.Comment)
	}
	return &OrderedEntries{m: m}
}

// Each calls f for every entry in order
func (o *OrderedEntries) Each(f func(e data.Entry, comment string)) {
	it := o.m.Iterator()
	for it.Next() {
		f(it.Key().(data.Entry), it.Value().(string))
	}
}

// Entries returns the ordered entries
func (o *OrderedEntries) Entries() []data.Entry {
	res := make([]data.Entry, 0, o.m.Size())
	for _, k := range o.m.Keys() {
		res = append(res, k.(data.Entry))
	}
	return res
}
