package fgblock

import (
	"strings"

	"github.com/scraperwall/fgblock/data"
	log "github.com/sirupsen/logrus"
)

// ParseResult contains the input lines that are valid addresses or networks
type ParseResult struct {
	Valid    []string
	Entries  []data.Entry
	Lines    int
	Rejected int
}

// ParseEntry parses a single literal. Errors are of type *ParseError
func ParseEntry(line int, value string) (data.Entry, error) {
	e, err := data.ParseEntry(value)
	if err != nil {
		return data.Entry{}, &ParseError{Line: line, Value: value, Err: err}
	}
	return e, nil
}

// ParseLines validates raw input lines. Empty lines and lines starting with # are skipped,
// every other line that can't be parsed is logged and counted as rejected.
func ParseLines(lines []string) ParseResult {
	res := ParseResult{
		Valid:   make([]string, 0, len(lines)),
		Entries: make([]data.Entry, 0, len(lines)),
	}

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res.Lines++

		e, err := ParseEntry(i+1, line)
		if err != nil {
			log.Warn(err)
			res.Rejected++
			continue
		}

		res.Valid = append(res.Valid, line)
		res.Entries = append(res.Entries, e)
	}

	log.Infof("validated addresses. %d valid, %d invalid", len(res.Valid), res.Rejected)
	return res
}

// toEntries converts validated literals into entries
func toEntries(literals []string) []data.Entry {
	entries := make([]data.Entry, 0, len(literals))
	for _, l := range literals {
		e, err := data.ParseEntry(l)
		if err != nil {
			// ParseLines let it through, which must not happen
			panic(err)
		}
		entries = append(entries, e)
	}
	return entries
}
