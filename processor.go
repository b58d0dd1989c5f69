package fgblock

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/scraperwall/fgblock/config"
	"github.com/scraperwall/fgblock/data"
	log "github.com/sirupsen/logrus"
)

// Processor runs the blocklist pipeline for single input files
type Processor struct {
	config     *config.Config
	resources  *Resources
	aggregator *Aggregator
	assembler  *Assembler
}

// NewProcessor creates a Processor. resources may be nil
func NewProcessor(config *config.Config, resources *Resources) *Processor {
	if resources == nil {
		resources = &Resources{}
	}

	return &Processor{
		config:     config,
		resources:  resources,
		aggregator: &Aggregator{Threshold: config.Threshold, Allowlist: resources.Allowlist},
		assembler:  NewAssembler(config),
	}
}

// ProcessFile reads input and publishes its entries to output
func (p *Processor) ProcessFile(ctx context.Context, input, output string) data.Report {
	lines, err := readLines(input)
	if err != nil {
		log.Errorf("can't read %s: %s", input, err)
		return data.Report{
			Input:  input,
			Output: output,
			Error:  err.Error(),
		}
	}
	log.Infof("loaded %d lines from %s", len(lines), input)

	report := p.Process(ctx, lines, output)
	report.Input = input
	return report
}

// Process validates, deduplicates, filters and aggregates lines and writes the blocklist to output.
// Comments of entries that are already listed in output are kept.
func (p *Processor) Process(ctx context.Context, lines []string, output string) data.Report {
	report := data.Report{Output: output}

	parsed := ParseLines(lines)
	report.Lines = parsed.Lines
	report.Rejected = parsed.Rejected

	entries, dropped := p.resources.Allowlist.Filter(toEntries(Dedup(parsed.Valid)))
	report.Filtered = len(dropped)

	entries = p.aggregator.Aggregate(entries)

	previous, err := LoadPrevious(output)
	if err != nil {
		log.Errorf("can't read the previous blocklist %s: %s", output, err)
		report.Error = err.Error()
		return report
	}

	res := p.assembler.Write(ctx, output, entries, previous, p.resources.Lookuper)
	report.Success = res.Success
	report.Entries = res.Entries
	report.Added = res.Added
	report.Removed = res.Removed
	report.Bytes = res.Bytes
	if res.Err != nil {
		report.Error = res.Err.Error()
	}

	log.Infof("%s: %d added, %d removed, %d entries", output, report.Added, report.Removed, report.Entries)
	return report
}

func readLines(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines := make([]string, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return lines, nil
}
