package target

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Target is a resolved scan target: a local directory, possibly a temporary
// clone of a remote repository.
type Target struct {
	// Path is the local directory the scanners run against.
	Path string
	// Name is what the target is called in snapshots and history: the
	// original path or URL as given.
	Name string
	// Commit is the cloned HEAD commit, empty for local targets.
	Commit string

	cloned bool
}

// Options controls remote resolution.
type Options struct {
	// Token authenticates HTTPS clones of private repositories.
	Token string
	// Branch selects a branch; empty clones the default HEAD.
	Branch string
}

// Resolve turns a scan argument into a local directory. Local paths are used
// in place; git URLs are shallow-cloned to a temp directory that Cleanup
// removes.
func Resolve(ctx context.Context, arg string, opts Options) (*Target, error) {
	if !IsRemote(arg) {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", arg, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("target %s is not a directory", arg)
		}
		return &Target{Path: arg, Name: arg}, nil
	}

	tmpDir, err := os.MkdirTemp("", "scantriage-clone-*")
	if err != nil {
		return nil, fmt.Errorf("creating clone directory: %w", err)
	}

	cloneOpts := &gogit.CloneOptions{
		URL:   arg,
		Depth: 1, // scanners only need the working tree
	}
	if opts.Token != "" {
		cloneOpts.Auth = &githttp.BasicAuth{
			Username: "scantriage",
			Password: opts.Token,
		}
	}
	if opts.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
		cloneOpts.SingleBranch = true
	}

	slog.Debug("Cloning target repository",
		"url", arg,
		"branch", opts.Branch,
		"dest", tmpDir,
	)

	repo, err := gogit.PlainCloneContext(ctx, tmpDir, false, cloneOpts)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("cloning %s: %w", arg, err)
	}

	head, err := repo.Head()
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	return &Target{
		Path:   tmpDir,
		Name:   arg,
		Commit: head.Hash().String(),
		cloned: true,
	}, nil
}

// Cleanup removes the temporary clone directory, if one was created.
func (t *Target) Cleanup() {
	if t == nil || !t.cloned {
		return
	}
	if err := os.RemoveAll(t.Path); err != nil {
		slog.Warn("Failed to clean up clone directory", "path", t.Path, "error", err)
	}
}

// IsRemote reports whether arg looks like a git URL rather than a local path.
func IsRemote(arg string) bool {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") ||
		strings.HasPrefix(arg, "git://") || strings.HasPrefix(arg, "ssh://") {
		return true
	}
	// SSH shorthand: git@host:owner/repo.git
	if strings.HasPrefix(arg, "git@") && strings.Contains(arg, ":") {
		return true
	}
	return false
}
