package fgblock

import (
	"context"
	"fmt"
	"time"

	"github.com/scraperwall/fgblock/config"
	"github.com/scraperwall/fgblock/data"
	"github.com/scraperwall/fgblock/repo"
	log "github.com/sirupsen/logrus"
)

// FGBlock keeps the published blocklists of a repository up to date
type FGBlock struct {
	config    *config.Config
	resources *Resources
	runner    *Runner
	api       *API

	ctx context.Context
}

// New opens the repository and all configured resources
func New(ctx context.Context, config *config.Config) (*FGBlock, error) {
	r, err := repo.Open(config.RepoPath, config.Remote, config.Branch)
	if err != nil {
		return nil, err
	}
	r.SetAuthor(config.AuthorName, config.AuthorEmail)

	resources, err := NewResources(ctx, config)
	if err != nil {
		return nil, err
	}

	f := &FGBlock{
		config:    config,
		resources: resources,
		ctx:       ctx,
	}

	f.runner = NewRunner(config, NewProcessor(config, resources), r, resources.Notifier)

	// API
	//
	if config.APIAddress != "" {
		f.api = NewAPI(ctx, config, f.runner, resources)
		f.api.Start()
	}

	// Input files
	//
	if config.WatchInputs {
		inputs := make([]string, len(config.InputFiles))
		for i, name := range config.InputFiles {
			inputs[i] = config.InputPath(name)
		}

		err = WatchFiles(ctx, inputs, func(name string) {
			f.runner.Run(ctx, fmt.Sprintf("%s changed", name), true)
		})
		if err != nil {
			resources.Close()
			return nil, err
		}
		log.Infof("watching %d input files for changes", len(inputs))
	}

	// clean up when we're done
	go func() {
		<-ctx.Done()
		resources.Close()
	}()

	return f, nil
}

// Run performs a single run
func (f *FGBlock) Run(reason string) data.RunReport {
	return f.runner.Run(f.ctx, reason, false)
}

// Schedule runs immediately and then every configured interval until the context is done.
// An interval of zero runs only once.
func (f *FGBlock) Schedule() {
	f.Run("startup")

	interval := f.config.Interval()
	if interval <= 0 {
		return
	}

	log.Infof("scheduled the next run in %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.Run("schedule")
			log.Infof("scheduled the next run in %s", interval)
		}
	}
}
