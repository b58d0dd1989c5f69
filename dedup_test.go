package fgblock

import (
	"sort"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
)

func TestDedup(t *testing.T) {
	gofakeit.Seed(42)

	values := make([]string, 0, 300)
	for i := 0; i < 100; i++ {
		ip := gofakeit.IPv4Address()
		values = append(values, ip, ip)
		if i%2 == 0 {
			values = append(values, ip)
		}
	}

	unique := Dedup(values)

	if len(unique) > 100 {
		t.Errorf("there can't be more than 100 distinct values but there are %d", len(unique))
	}

	if !sort.StringsAreSorted(unique) {
		t.Error("the distinct values should be sorted")
	}

	in := make(map[string]bool)
	for _, v := range values {
		in[v] = true
	}

	seen := make(map[string]bool)
	for _, v := range unique {
		if seen[v] {
			t.Errorf("%s is contained more than once", v)
		}
		seen[v] = true

		if !in[v] {
			t.Errorf("%s is not part of the input", v)
		}
	}

	if len(seen) != len(in) {
		t.Errorf("%d distinct values are expected but got %d", len(in), len(seen))
	}

	again := Dedup(unique)
	if len(again) != len(unique) {
		t.Errorf("Dedup should be idempotent")
	}
}

func TestDedupEmpty(t *testing.T) {
	if res := Dedup(nil); len(res) != 0 {
		t.Errorf("Dedup(nil) should be empty but is %v", res)
	}
}
