package fgblock

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/scraperwall/fgblock/config"
	"github.com/scraperwall/fgblock/data"
	"github.com/scraperwall/fgblock/registry"
	log "github.com/sirupsen/logrus"
)

// Assembler merges fresh entries with the annotations of the previous output
// and writes the blocklist file
type Assembler struct {
	MaxEntries       int
	MaxCommentLength int
	MaxSizeBytes     int64
}

// Diff lists the entries that are new and the previous entries that are gone
type Diff struct {
	Added   []data.Entry
	Removed []string
}

// Result is the outcome of writing one blocklist
type Result struct {
	Success bool
	Added   int
	Removed int
	Entries int
	Bytes   int64
	Err     error
}

// NewAssembler creates an Assembler with the limits from config
func NewAssembler(config *config.Config) *Assembler {
	return &Assembler{
		MaxEntries:       config.MaxEntries,
		MaxCommentLength: config.MaxCommentLength,
		MaxSizeBytes:     config.MaxSizeBytes,
	}
}

// Assemble annotates entries. Comments of entries that were already published are kept,
// new entries are looked up with lookup, which may be nil.
func (a *Assembler) Assemble(ctx context.Context, entries []data.Entry, previous map[string]string, lookup registry.Lookuper) (data.EntrySet, Diff) {
	set := make(data.EntrySet, len(entries))
	diff := Diff{}

	for _, e := range entries {
		key := e.String()
		if _, ok := set[key]; ok {
			continue
		}

		if comment, ok := previous[key]; ok {
			set.Add(e, comment)
			continue
		}

		diff.Added = append(diff.Added, e)
		set.Add(e, a.lookup(ctx, e, lookup))
	}

	for key := range previous {
		if _, ok := set[key]; !ok {
			diff.Removed = append(diff.Removed, key)
		}
	}

	diff.Added = SortEntries(diff.Added)
	sort.Strings(diff.Removed)

	return set, diff
}

func (a *Assembler) lookup(ctx context.Context, e data.Entry, lookup registry.Lookuper) string {
	if lookup == nil {
		return ""
	}

	reg, err := lookup.Lookup(ctx, e.Addr)
	if err != nil {
		log.Error(&LookupError{Entry: e.String(), Err: err})
		return ""
	}

	comment := reg.Comment()
	log.Tracef("%s: %s", e, comment)
	return comment
}

// Render returns the blocklist text for set: one "entry # comment" line per entry in canonical order
func (a *Assembler) Render(set data.EntrySet) []byte {
	var buf bytes.Buffer

	Sort(set).Each(func(e data.Entry, comment string) {
		buf.WriteString(e.String())
		if comment = a.truncate(comment); comment != "" {
			buf.WriteString(" # ")
			buf.WriteString(comment)
		}
		buf.WriteByte('\n')
	})

	return buf.Bytes()
}

// truncate cuts comments that wouldn't fit into MaxCommentLength together with the leading "# "
func (a *Assembler) truncate(comment string) string {
	comment = strings.Join(strings.Fields(comment), " ")

	runes := []rune(comment)
	if a.MaxCommentLength >= 5 && len(runes) > a.MaxCommentLength-2 {
		return string(runes[:a.MaxCommentLength-5]) + "..."
	}
	return comment
}

// Write assembles and renders the blocklist and replaces the file at path.
// Nothing is written when one of the limits is exceeded.
func (a *Assembler) Write(ctx context.Context, path string, entries []data.Entry, previous map[string]string, lookup registry.Lookuper) Result {
	if len(entries) > a.MaxEntries {
		err := &LimitExceededError{Limit: LimitEntries, Value: int64(len(entries)), Max: int64(a.MaxEntries)}
		log.Errorf("%s: %s", path, err)
		return Result{Entries: len(entries), Err: err}
	}

	set, diff := a.Assemble(ctx, entries, previous, lookup)
	res := Result{
		Added:   len(diff.Added),
		Removed: len(diff.Removed),
		Entries: len(set),
	}

	content := a.Render(set)
	res.Bytes = int64(len(content))

	if res.Bytes > a.MaxSizeBytes {
		res.Err = &LimitExceededError{Limit: LimitSize, Value: res.Bytes, Max: a.MaxSizeBytes}
		log.Errorf("%s: %s", path, res.Err)
		return res
	}

	if err := writeFileAtomic(path, content); err != nil {
		res.Err = fmt.Errorf("can't write %s: %w", path, err)
		log.Error(res.Err)
		return res
	}

	log.Infof("wrote %d entries (%s) to %s", res.Entries, humanize.IBytes(uint64(res.Bytes)), path)
	res.Success = true
	return res
}

// writeFileAtomic replaces path with content. The previous file stays in place if anything fails
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
