package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	log "github.com/sirupsen/logrus"
)

// ErrNoRemoteBranch is returned when the remote tracking branch doesn't exist
var ErrNoRemoteBranch = errors.New("remote branch not found")

// Repository is the git working copy the blocklists are published from
type Repository struct {
	path   string
	remote string
	branch string

	authorName  string
	authorEmail string

	repo *git.Repository
}

// Open opens the existing working copy at path
func Open(path, remote, branch string) (*Repository, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("can't open the git repository at %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	log.Infof("initialized git repository at %s", abs)

	return &Repository{
		path:        abs,
		remote:      remote,
		branch:      branch,
		authorName:  "fgblock",
		authorEmail: "fgblock@localhost",
		repo:        r,
	}, nil
}

// SetAuthor sets the author of the commits
func (r *Repository) SetAuthor(name, email string) {
	r.authorName = name
	r.authorEmail = email
}

// HasRemoteChanges fetches the remote and reports whether the local branch
// points to a different commit than the remote branch
func (r *Repository) HasRemoteChanges(ctx context.Context) (bool, error) {
	err := r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: r.remote,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return false, fmt.Errorf("fetch from %s failed: %w", r.remote, err)
	}

	local, err := r.repo.Reference(plumbing.NewBranchReferenceName(r.branch), true)
	if err != nil {
		return false, fmt.Errorf("local branch %s: %w", r.branch, err)
	}

	remote, err := r.repo.Reference(plumbing.NewRemoteReferenceName(r.remote, r.branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, fmt.Errorf("%s/%s: %w", r.remote, r.branch, ErrNoRemoteBranch)
		}
		return false, err
	}

	log.Tracef("local %s, remote %s", local.Hash(), remote.Hash())
	return local.Hash() != remote.Hash(), nil
}

// Pull merges the remote branch into the working copy
func (r *Repository) Pull(ctx context.Context) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}

	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    r.remote,
		ReferenceName: plumbing.NewBranchReferenceName(r.branch),
		SingleBranch:  true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull from %s failed: %w", r.remote, err)
	}

	log.Info("pulled the latest changes from the remote repository")
	return nil
}

// Commit stages every modified or deleted tracked file plus the given paths and
// commits them. It returns false when there was nothing to commit.
func (r *Repository) Commit(message string, paths ...string) (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, err
	}

	status, err := wt.Status()
	if err != nil {
		return false, err
	}

	for file, s := range status {
		switch s.Worktree {
		case git.Modified:
			_, err = wt.Add(file)
		case git.Deleted:
			_, err = wt.Remove(file)
		default:
			continue
		}
		if err != nil {
			return false, fmt.Errorf("can't stage %s: %w", file, err)
		}
	}

	for _, p := range paths {
		rel, err := r.relative(p)
		if err != nil {
			return false, err
		}
		if _, err := wt.Add(rel); err != nil {
			return false, fmt.Errorf("can't stage %s: %w", rel, err)
		}
	}

	status, err = wt.Status()
	if err != nil {
		return false, err
	}
	if !hasStagedChanges(status) {
		log.Info("no changes to commit")
		return false, nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.authorName,
			Email: r.authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return false, err
	}

	log.Infof("committed %s", hash)
	return true, nil
}

// Push pushes the local branch to the remote
func (r *Repository) Push(ctx context.Context) error {
	refspec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", r.branch, r.branch)

	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(refspec)},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push to %s failed: %w", r.remote, err)
	}
	return nil
}

// CommitAndPush commits all changes and pushes them. It returns false when there was nothing to commit
func (r *Repository) CommitAndPush(ctx context.Context, message string, paths ...string) (bool, error) {
	committed, err := r.Commit(message, paths...)
	if err != nil || !committed {
		return false, err
	}

	if err := r.Push(ctx); err != nil {
		return true, err
	}

	log.Info("changes committed and pushed to the remote repository")
	return true, nil
}

// Head returns the commit the local branch points to
func (r *Repository) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", err
	}
	return ref.Hash().String(), nil
}

func (r *Repository) relative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path), nil
	}

	rel, err := filepath.Rel(r.path, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside of the repository %s", path, r.path)
	}
	return filepath.ToSlash(rel), nil
}

func hasStagedChanges(status git.Status) bool {
	for _, s := range status {
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			return true
		}
	}
	return false
}
