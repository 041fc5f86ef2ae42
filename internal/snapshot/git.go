package snapshot

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"go.uber.org/zap"
)

// GitSnapshotter pushes file-store mutations into a git repository as an
// audit trail. Every call is dispatched through the background worker, so
// the mutating request never waits on git or the network. Failures are
// logged and counted, never surfaced.
type GitSnapshotter struct {
	dir        string
	remote     string
	branch     string
	dispatcher *worker.Dispatcher
	logger     *zap.Logger
}

// NewGitSnapshotter snapshots the data directory dir. remote may be empty,
// in which case commits stay local.
func NewGitSnapshotter(dir, remote, branch string, dispatcher *worker.Dispatcher) *GitSnapshotter {
	if branch == "" {
		branch = "main"
	}
	return &GitSnapshotter{
		dir:        dir,
		remote:     remote,
		branch:     branch,
		dispatcher: dispatcher,
		logger:     util.GetLogger(),
	}
}

// Snapshot queues a commit of the current data directory state.
func (g *GitSnapshotter) Snapshot(description string) {
	g.dispatcher.Submit(worker.Task{
		Name: "git-snapshot",
		Fn: func(ctx context.Context) error {
			return g.commit(ctx, description)
		},
	})
}

func (g *GitSnapshotter) commit(ctx context.Context, description string) error {
	if err := g.git(ctx, "add", "-A"); err != nil {
		util.SnapshotsFailedTotal.Inc()
		return err
	}

	err := g.git(ctx, "commit", "-m", description)
	if err != nil {
		// Nothing staged means the mutation was already captured by an
		// earlier queued snapshot.
		if strings.Contains(err.Error(), "nothing to commit") {
			return nil
		}
		util.SnapshotsFailedTotal.Inc()
		return err
	}

	if g.remote != "" {
		if err := g.git(ctx, "push", g.remote, g.branch); err != nil {
			util.SnapshotsFailedTotal.Inc()
			return err
		}
	}

	util.SnapshotsTotal.Inc()
	g.logger.Debug("Snapshot committed", zap.String("description", description))
	return nil
}

func (g *GitSnapshotter) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
