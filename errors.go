package fgblock

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// ParseError is returned for an input line that is neither an IP address nor a CIDR
type ParseError struct {
	Line  int
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %q is not a valid IP address or network: %s", e.Line, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LimitExceededError is returned when a blocklist would exceed one of the configured hard limits.
// The output file is not written in that case.
type LimitExceededError struct {
	Limit string
	Value int64
	Max   int64
}

func (e *LimitExceededError) Error() string {
	if e.Limit == LimitSize {
		return fmt.Sprintf("the file size of %s exceeds the limit of %s", humanize.IBytes(uint64(e.Value)), humanize.IBytes(uint64(e.Max)))
	}
	return fmt.Sprintf("the number of entries (%d) exceeds the limit of %d", e.Value, e.Max)
}

// Limits that are checked before an output file is written
const (
	LimitEntries = "entries"
	LimitSize    = "size"
)

// LookupError is returned when the registry data for an entry could not be retrieved
type LookupError struct {
	Entry string
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("registry lookup for %s failed: %s", e.Entry, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
