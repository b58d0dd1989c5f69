package fgblock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPreviousMissing(t *testing.T) {
	entries, err := LoadPrevious(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if err != nil {
		t.Fatalf("a missing file should not be an error: %s", err)
	}
	if len(entries) != 0 {
		t.Errorf("a missing file should result in no entries but got %d", len(entries))
	}
}

func TestLoadPrevious(t *testing.T) {
	content := `# published blocklist

1.2.3.4 # United States | California | Google LLC
10.0.0.0/24 # Germany
10.0.1.0/24
2001:db8::1 #   with spaces   
garbage # ignored
`
	path := filepath.Join(t.TempDir(), "blocklist.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadPrevious(path)
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]string{
		"1.2.3.4/32":      "United States | California | Google LLC",
		"10.0.0.0/24":     "Germany",
		"10.0.1.0/24":     "",
		"2001:db8::1/128": "with spaces",
	}

	if len(entries) != len(expected) {
		t.Fatalf("expected %d entries but got %d: %v", len(expected), len(entries), entries)
	}
	for k, v := range expected {
		c, ok := entries[k]
		if !ok {
			t.Errorf("%s is missing", k)
			continue
		}
		if c != v {
			t.Errorf("the comment of %s should be %q but is %q", k, v, c)
		}
	}
}
