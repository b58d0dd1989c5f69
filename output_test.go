package fgblock

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/scraperwall/fgblock/data"
	"github.com/scraperwall/fgblock/registry"
)

func testAssembler() *Assembler {
	return &Assembler{
		MaxEntries:       131072,
		MaxCommentLength: 63,
		MaxSizeBytes:     10 << 20,
	}
}

func staticLookuper(reg data.Registry, calls *int) registry.Lookuper {
	return registry.LookuperFunc(func(ctx context.Context, addr netip.Addr) (data.Registry, error) {
		if calls != nil {
			*calls++
		}
		return reg, nil
	})
}

func TestAssemble(t *testing.T) {
	previous := map[string]string{
		"1.1.1.1/32": "kept comment",
		"9.9.9.9/32": "gone",
	}

	calls := 0
	lookup := staticLookuper(data.Registry{Country: "Germany", Region: "Bavaria", ISP: "ACME"}, &calls)

	set, diff := testAssembler().Assemble(context.Background(), entries("1.1.1.1", "2.2.2.0/24"), previous, lookup)

	if calls != 1 {
		t.Errorf("only new entries should be looked up but there were %d lookups", calls)
	}

	if c := set["1.1.1.1/32"].Comment; c != "kept comment" {
		t.Errorf("the comment of 1.1.1.1/32 should be kept but is %q", c)
	}
	if c := set["2.2.2.0/24"].Comment; c != "Germany | Bavaria | ACME" {
		t.Errorf("the comment of 2.2.2.0/24 should be the registry data but is %q", c)
	}
	if set.Has(data.MustParseEntry("9.9.9.9")) {
		t.Error("9.9.9.9/32 is not part of the input and should have been removed")
	}

	assertEntries(t, diff.Added, "2.2.2.0/24")
	if len(diff.Removed) != 1 || diff.Removed[0] != "9.9.9.9/32" {
		t.Errorf("9.9.9.9/32 should be the only removed entry but removed are %v", diff.Removed)
	}
}

func TestAssembleLookupError(t *testing.T) {
	lookup := registry.LookuperFunc(func(ctx context.Context, addr netip.Addr) (data.Registry, error) {
		return data.Registry{}, errors.New("service unavailable")
	})

	set, diff := testAssembler().Assemble(context.Background(), entries("3.3.3.3"), nil, lookup)

	if len(set) != 1 || len(diff.Added) != 1 {
		t.Fatalf("3.3.3.3 should be added despite the failed lookup")
	}
	if c := set["3.3.3.3/32"].Comment; c != "" {
		t.Errorf("a failed lookup should result in an empty comment but it is %q", c)
	}
}

func TestRender(t *testing.T) {
	set := make(data.EntrySet)
	set.Add(data.MustParseEntry("10.0.0.1"), "")
	set.Add(data.MustParseEntry("10.0.1.0/24"), "Germany | Hesse |  Some\nISP")
	set.Add(data.MustParseEntry("10.0.0.0/24"), "US")

	expected := "10.0.0.0/24 # US\n10.0.1.0/24 # Germany | Hesse | Some ISP\n10.0.0.1/32\n"
	if got := string(testAssembler().Render(set)); got != expected {
		t.Errorf("expected\n%s\nbut got\n%s", expected, got)
	}

	if got := testAssembler().Render(make(data.EntrySet)); len(got) != 0 {
		t.Errorf("an empty set should render to nothing but is %q", got)
	}
}

func TestTruncate(t *testing.T) {
	a := &Assembler{MaxCommentLength: 10}

	tests := []struct {
		comment  string
		expected string
	}{
		{"abcdefgh", "abcdefgh"},
		{"abcdefghi", "abcde..."},
		{"abcdefghijklmnop", "abcde..."},
		{"äöüäöüäöüä", "äöüäö..."},
		{"", ""},
	}

	for _, test := range tests {
		if got := a.truncate(test.comment); got != test.expected {
			t.Errorf("%q should be truncated to %q but is %q", test.comment, test.expected, got)
		}
	}
}

func TestTruncateShortest(t *testing.T) {
	a := &Assembler{MaxCommentLength: 5}

	if got := a.truncate("abc"); got != "abc" {
		t.Errorf("abc fits into 5 characters with the leading \"# \" but is %q", got)
	}
	if got := a.truncate("abcd"); got != "..." {
		t.Errorf("abcd should be truncated to ... but is %q", got)
	}
}

func TestWriteEntryLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output", "blocklist.txt")

	a := testAssembler()
	a.MaxEntries = 2

	calls := 0
	res := a.Write(context.Background(), path, entries("1.1.1.1", "2.2.2.2", "3.3.3.3"), nil, staticLookuper(data.Registry{}, &calls))

	if res.Success {
		t.Error("writing 3 entries with a limit of 2 should fail")
	}

	var lerr *LimitExceededError
	if !errors.As(res.Err, &lerr) || lerr.Limit != LimitEntries {
		t.Errorf("the error should be an entries *LimitExceededError but is %v", res.Err)
	}

	if calls != 0 {
		t.Errorf("no lookups should be made when the entry limit is exceeded but there were %d", calls)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("%s should not have been written", path)
	}
}

func TestWriteSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.txt")
	if err := os.WriteFile(path, []byte("8.8.8.8/32\n"), 0644); err != nil {
		t.Fatal(err)
	}

	a := testAssembler()
	a.MaxSizeBytes = 20

	res := a.Write(context.Background(), path, entries("1.1.1.1", "2.2.2.2", "3.3.3.3"), nil, nil)
	if res.Success {
		t.Error("the rendered list is larger than 20 bytes and should not be written")
	}

	var lerr *LimitExceededError
	if !errors.As(res.Err, &lerr) || lerr.Limit != LimitSize {
		t.Errorf("the error should be a size *LimitExceededError but is %v", res.Err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "8.8.8.8/32\n" {
		t.Errorf("the previous file should be untouched but contains %q", content)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.txt")

	previous := map[string]string{
		"10.0.0.0/24": "Netherlands | North Holland | Example Hosting B.V.",
		"10.0.0.1/32": "",
	}

	a := testAssembler()
	in := entries("10.0.0.0/24", "10.0.0.1", "2001:db8::/32")
	res := a.Write(context.Background(), path, in, previous, staticLookuper(data.Registry{Country: "Japan", ISP: "NTT"}, nil))

	if !res.Success {
		t.Fatalf("writing %s failed: %s", path, res.Err)
	}
	if res.Entries != 3 || res.Added != 1 || res.Removed != 0 {
		t.Errorf("expected 3 entries, 1 added and 0 removed but got %d/%d/%d", res.Entries, res.Added, res.Removed)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != res.Bytes {
		t.Errorf("the file has %d bytes but %d were reported", fi.Size(), res.Bytes)
	}

	loaded, err := LoadPrevious(path)
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]string{
		"10.0.0.0/24":   "Netherlands | North Holland | Example Hosting B.V.",
		"10.0.0.1/32":   "",
		"2001:db8::/32": "Japan | NTT",
	}
	if len(loaded) != len(expected) {
		t.Fatalf("expected %v but loaded %v", expected, loaded)
	}
	for k, v := range expected {
		if loaded[k] != v {
			t.Errorf("the comment of %s should be %q but is %q", k, v, loaded[k])
		}
	}

	// nothing changes when the same entries are written again
	before, _ := os.ReadFile(path)
	res = a.Write(context.Background(), path, in, loaded, nil)
	after, _ := os.ReadFile(path)

	if !res.Success || res.Added != 0 || res.Removed != 0 {
		t.Errorf("the second write should succeed without changes: %+v", res)
	}
	if string(before) != string(after) {
		t.Errorf("the file changed on the second write:\n%s\n%s", before, after)
	}
}
