// Package validate implements decapod's validate pipeline: six named gates
// run in order under a shared deadline, first-failure-wins, per spec.md
// §4.8. Gate registry is modeled on the teacher's validator_registry.go — a
// slice of named closures walked in order — generalized from file/syntax/
// exec validators to these six governance gates.
package validate

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"decapod/internal/decerr"
	"decapod/internal/session"
	"decapod/internal/todostore"
)

// Gate is one named step of the pipeline.
type Gate struct {
	Name string
	Run  func(ctx context.Context, opts Options) error
}

// Options carries everything a gate needs to decide pass/fail.
type Options struct {
	Workspace       string
	Branch          string
	ProtectedBranch bool
	Dirty           bool
	DirtyFileCount  int
	Actor           string
	SessionPassword string
	MaxDirtyFiles   int

	// WithWrite opens the shared database through the same write-lock
	// serialization every broker-backed mutation uses (dbpool.Pool.WithWrite),
	// so the mandatory-TODO gate's ownership check is consistent with any
	// concurrent task claim/release and so VALIDATE_TIMEOUT_OR_LOCK is
	// reachable through the validate pipeline, per spec.md's Scenario S2.
	WithWrite func(ctx context.Context, fn func(*sql.DB) error) error
}

// Pipeline runs an ordered set of gates under a shared deadline.
type Pipeline struct {
	Gates []Gate
}

// Default returns the standard six-gate pipeline: session, git,
// commit-often, mandatory-TODO, workunit-publish, plan.
func Default() Pipeline {
	return Pipeline{Gates: []Gate{
		{Name: "session", Run: sessionGate},
		{Name: "git", Run: gitGate},
		{Name: "commit-often", Run: commitOftenGate},
		{Name: "mandatory-todo", Run: mandatoryTODOGate},
		{Name: "workunit-publish", Run: workunitPublishGate},
		{Name: "plan", Run: planGate},
	}}
}

// timeoutDuration resolves DECAPOD_VALIDATE_TIMEOUT_SECS, defaulting to 60s.
func timeoutDuration() time.Duration {
	if v := os.Getenv("DECAPOD_VALIDATE_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 60 * time.Second
}

func skipGitGates() bool {
	return os.Getenv("DECAPOD_VALIDATE_SKIP_GIT_GATES") == "1"
}

func maxDirtyFiles() int {
	if v := os.Getenv("DECAPOD_COMMIT_OFTEN_MAX_DIRTY_FILES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 20
}

// Run executes every gate in order under a shared deadline bounded by
// DECAPOD_VALIDATE_TIMEOUT_SECS. errgroup.WithContext supplies the single
// shared cancellation context; gates still run sequentially — this buys
// deadline propagation, not concurrency.
func (p Pipeline) Run(ctx context.Context, opts Options) error {
	if opts.MaxDirtyFiles == 0 {
		opts.MaxDirtyFiles = maxDirtyFiles()
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, timeoutDuration())
	defer cancel()

	g, gctx := errgroup.WithContext(deadlineCtx)
	g.Go(func() error {
		for _, gate := range p.Gates {
			if gctx.Err() != nil {
				return decerr.Wrap(decerr.KindValidateTimeoutOrLock, gctx.Err(), "VALIDATE_TIMEOUT_OR_LOCK: gate %s", gate.Name)
			}
			if err := gate.Run(gctx, opts); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

func sessionGate(ctx context.Context, opts Options) error {
	return session.Verify(opts.Workspace, opts.Actor, opts.SessionPassword)
}

func gitGate(ctx context.Context, opts Options) error {
	if skipGitGates() {
		return nil
	}
	if opts.ProtectedBranch && opts.Dirty {
		return decerr.New(decerr.KindWorkspaceInterlockDirtyProtected, "WORKSPACE_INTERLOCK_DIRTY_PROTECTED: %s is protected and dirty", opts.Branch)
	}
	return nil
}

func commitOftenGate(ctx context.Context, opts Options) error {
	if opts.DirtyFileCount > opts.MaxDirtyFiles {
		return decerr.New(decerr.KindCommitOftenViolation, "Commit-often mandate violation: %d dirty files exceeds max %d", opts.DirtyFileCount, opts.MaxDirtyFiles)
	}
	return nil
}

func mandatoryTODOGate(ctx context.Context, opts Options) error {
	if opts.WithWrite == nil {
		return decerr.New(decerr.KindInvalidArgument, "mandatory-todo gate: no database handle configured")
	}
	var owns bool
	err := opts.WithWrite(ctx, func(db *sql.DB) error {
		var err error
		owns, err = todostore.OwnsOpenOrClaimedTask(ctx, db, opts.Actor)
		return err
	})
	if err != nil {
		return err
	}
	if !owns {
		return decerr.New(decerr.KindInvalidArgument, "no open or claimed task owned by %s; mandatory TODO gate requires one", opts.Actor)
	}
	return nil
}
