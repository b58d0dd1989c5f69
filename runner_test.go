package fgblock

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/scraperwall/fgblock/config"
	"github.com/scraperwall/fgblock/data"
)

type fakeRepo struct {
	changed  bool
	fetchErr error
	pullErr  error

	mutex     sync.Mutex
	pulls     int
	commits   int
	committed []string
	message   string
}

func (r *fakeRepo) HasRemoteChanges(ctx context.Context) (bool, error) {
	return r.changed, r.fetchErr
}

func (r *fakeRepo) Pull(ctx context.Context) error {
	r.mutex.Lock()
	r.pulls++
	r.mutex.Unlock()
	return r.pullErr
}

func (r *fakeRepo) CommitAndPush(ctx context.Context, message string, paths ...string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.commits++
	r.message = message
	r.committed = append(r.committed, paths...)
	return true, nil
}

type fakeNotifier struct {
	reports []data.RunReport
}

func (n *fakeNotifier) Notify(ctx context.Context, report *data.RunReport) error {
	n.reports = append(n.reports, *report)
	return nil
}

func runnerConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := testConfig(t)
	cfg.Threshold = 3
	writeInput(t, cfg, cfg.InputFiles[0], "1.2.3.1\n1.2.3.2\n1.2.3.3\n")
	writeInput(t, cfg, cfg.InputFiles[1], "8.8.8.8\n9.9.9.9\n")
	return cfg
}

func TestRunnerPublish(t *testing.T) {
	cfg := runnerConfig(t)
	repo := &fakeRepo{changed: true}
	notifier := &fakeNotifier{}

	r := NewRunner(cfg, NewProcessor(cfg, nil), repo, notifier)

	if _, ok := r.LastReport(); ok {
		t.Error("there should be no report before the first run")
	}

	report := r.Run(context.Background(), "test", false)

	if report.Skipped || !report.Success() {
		t.Fatalf("the run should have succeeded: %+v", report)
	}
	if !report.Published {
		t.Error("the results should have been published")
	}
	if report.Additions != 3 || report.Deletions != 0 {
		t.Errorf("expected 3 additions and 0 deletions but got %d/%d", report.Additions, report.Deletions)
	}

	if repo.pulls != 1 || repo.commits != 1 {
		t.Errorf("expected 1 pull and 1 commit but got %d/%d", repo.pulls, repo.commits)
	}
	if repo.message != "Update validated blocklists" {
		t.Errorf("unexpected commit message %q", repo.message)
	}

	expected := []string{cfg.OutputPath(cfg.InputFiles[0]), cfg.OutputPath(cfg.InputFiles[1])}
	if len(repo.committed) != 2 || repo.committed[0] != expected[0] || repo.committed[1] != expected[1] {
		t.Errorf("the outputs %v should have been committed but were %v", expected, repo.committed)
	}

	if got := readOutput(t, expected[0]); got != "1.2.3.0/24\n" {
		t.Errorf("unexpected manual list %q", got)
	}

	if len(notifier.reports) != 1 {
		t.Errorf("the run report should have been sent once but was sent %d times", len(notifier.reports))
	}

	last, ok := r.LastReport()
	if !ok || last.Reason != "test" || last.Finished.IsZero() {
		t.Errorf("unexpected last report %+v", last)
	}
}

func TestRunnerNoRemoteChanges(t *testing.T) {
	cfg := runnerConfig(t)
	repo := &fakeRepo{changed: false}

	r := NewRunner(cfg, NewProcessor(cfg, nil), repo, nil)
	report := r.Run(context.Background(), "test", false)

	if !report.Skipped {
		t.Error("the run should have been skipped")
	}
	if repo.pulls != 0 || repo.commits != 0 {
		t.Errorf("a skipped run must not pull or commit")
	}
	if _, err := os.Stat(cfg.OutputPath(cfg.InputFiles[0])); !os.IsNotExist(err) {
		t.Error("a skipped run must not write any list")
	}

	report = r.Run(context.Background(), "forced", true)
	if report.Skipped || !report.Published {
		t.Errorf("a forced run should process and publish: %+v", report)
	}
}

func TestRunnerFetchError(t *testing.T) {
	cfg := runnerConfig(t)
	repo := &fakeRepo{fetchErr: errors.New("network unreachable")}

	report := NewRunner(cfg, NewProcessor(cfg, nil), repo, nil).Run(context.Background(), "test", true)
	if !report.Skipped || report.Error == "" {
		t.Errorf("a failed fetch should skip the run with an error: %+v", report)
	}
}

func TestRunnerPullError(t *testing.T) {
	cfg := runnerConfig(t)
	repo := &fakeRepo{changed: true, pullErr: errors.New("merge conflict")}

	report := NewRunner(cfg, NewProcessor(cfg, nil), repo, nil).Run(context.Background(), "test", false)
	if !report.Skipped || report.Error == "" || len(report.Files) != 0 {
		t.Errorf("a failed pull should skip the run with an error: %+v", report)
	}
}

func TestRunnerDebugRepoErrors(t *testing.T) {
	cfg := runnerConfig(t)
	cfg.Debug = true
	repo := &fakeRepo{fetchErr: errors.New("network unreachable"), pullErr: errors.New("network unreachable")}

	report := NewRunner(cfg, NewProcessor(cfg, nil), repo, nil).Run(context.Background(), "test", false)

	if report.Skipped || !report.Success() {
		t.Fatalf("debug mode should process the local copy when the remote is unreachable: %+v", report)
	}
	if report.Error == "" {
		t.Error("the report should contain the repository error")
	}
	if report.Published || repo.commits != 0 {
		t.Error("debug mode must not publish")
	}
}

func TestRunnerDebug(t *testing.T) {
	cfg := runnerConfig(t)
	cfg.Debug = true
	repo := &fakeRepo{changed: false}

	report := NewRunner(cfg, NewProcessor(cfg, nil), repo, nil).Run(context.Background(), "test", false)

	if report.Skipped || !report.Success() {
		t.Fatalf("debug mode should always process: %+v", report)
	}
	if report.Published || repo.commits != 0 {
		t.Error("debug mode must not publish")
	}
	if repo.pulls != 1 {
		t.Errorf("debug mode should pull once but pulled %d times", repo.pulls)
	}
}

func TestRunnerFailedFile(t *testing.T) {
	cfg := runnerConfig(t)
	cfg.InputFiles = []string{"missing.txt", cfg.InputFiles[1]}
	repo := &fakeRepo{changed: true}

	report := NewRunner(cfg, NewProcessor(cfg, nil), repo, nil).Run(context.Background(), "test", false)

	if report.Success() {
		t.Error("the run should fail when one of the inputs is missing")
	}
	if len(report.Files) != 2 || !report.Files[1].Success {
		t.Errorf("the second file should be processed despite the first one failing: %+v", report.Files)
	}
	if repo.commits != 0 || report.Published {
		t.Error("nothing should be published when a file failed")
	}
}
