package fgblock

import (
	"context"
	"sync"
	"time"

	"github.com/scraperwall/fgblock/config"
	"github.com/scraperwall/fgblock/data"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Repository is the version control working copy the inputs come from and the outputs are published to
type Repository interface {
	HasRemoteChanges(ctx context.Context) (bool, error)
	Pull(ctx context.Context) error
	CommitAndPush(ctx context.Context, message string, paths ...string) (bool, error)
}

// Runner processes all input files and publishes the results
type Runner struct {
	config    *config.Config
	processor *Processor
	repo      Repository
	notifier  Notifier

	group singleflight.Group
	mutex sync.RWMutex
	last  *data.RunReport
}

// NewRunner creates a Runner. repo and notifier may be nil
func NewRunner(config *config.Config, processor *Processor, repo Repository, notifier Notifier) *Runner {
	return &Runner{
		config:    config,
		processor: processor,
		repo:      repo,
		notifier:  notifier,
	}
}

// Run performs a complete run unless one is already in progress, in which case
// it waits for that run and returns its report. Without force the run is skipped
// when the remote has no new commits, except in debug mode. A failed fetch or pull
// skips the run as well unless in debug mode, which processes the local copy.
func (r *Runner) Run(ctx context.Context, reason string, force bool) data.RunReport {
	v, _, shared := r.group.Do("run", func() (interface{}, error) {
		return r.run(ctx, reason, force), nil
	})

	report := v.(data.RunReport)
	if shared && report.Reason != reason {
		log.Infof("%s: joined the run for %s", reason, report.Reason)
	}
	return report
}

// LastReport returns the report of the most recent run
func (r *Runner) LastReport() (data.RunReport, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.last == nil {
		return data.RunReport{}, false
	}
	return *r.last, true
}

func (r *Runner) run(ctx context.Context, reason string, force bool) (report data.RunReport) {
	report = data.RunReport{
		Reason:  reason,
		Started: time.Now(),
		Files:   make([]data.Report, 0, len(r.config.InputFiles)),
	}
	log.Infof("starting run: %s", reason)

	defer r.finish(ctx, &report)

	if r.repo != nil {
		changed, err := r.repo.HasRemoteChanges(ctx)
		if err != nil {
			log.Errorf("can't check for remote changes: %s", err)
			report.Error = err.Error()
			if !r.config.Debug {
				report.Skipped = true
				return report
			}
		}

		if err == nil && !changed && !force && !r.config.Debug {
			log.Info("no remote changes detected and not in debug mode. Skipping processing.")
			report.Skipped = true
			return report
		}

		if err := r.repo.Pull(ctx); err != nil {
			log.Errorf("pull failed: %s", err)
			report.Error = err.Error()
			if !r.config.Debug {
				report.Skipped = true
				return report
			}
		}
	}

	outputs := make([]string, 0, len(r.config.InputFiles))
	for _, name := range r.config.InputFiles {
		input, output := r.config.InputPath(name), r.config.OutputPath(name)

		fr := r.processor.ProcessFile(ctx, input, output)
		report.Files = append(report.Files, fr)
		report.Additions += fr.Added
		report.Deletions += fr.Removed

		if fr.Success {
			outputs = append(outputs, output)
		}
	}

	switch {
	case !report.Success():
		log.Error("error during output file validation, not pushing to git.")
	case r.config.Debug:
		log.Warn("currently in debug mode, not pushing to git.")
	case r.repo == nil:
		log.Warn("no repository configured, not pushing to git.")
	default:
		published, err := r.repo.CommitAndPush(ctx, r.config.CommitMsg, outputs...)
		if err != nil {
			log.Errorf("publishing failed: %s", err)
			report.Error = err.Error()
		}
		report.Published = published && err == nil
	}

	return report
}

func (r *Runner) finish(ctx context.Context, report *data.RunReport) {
	report.Finished = time.Now()

	if !report.Skipped {
		log.Infof("Stats: %d Additions | %d Deletions", report.Additions, report.Deletions)
	}

	r.mutex.Lock()
	last := *report
	r.last = &last
	r.mutex.Unlock()

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, report); err != nil {
			log.Warnf("failed to publish the run report: %s", err)
		}
	}
}
