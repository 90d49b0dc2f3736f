// pattern: Imperative Shell

// Package snap supervises a one-shot agent session inside a freshly
// created worktree: spawn the agent, wait, inspect what it left behind,
// and drive the merge/keep/discard decision. Merging goes through the
// same engine entry point the merge verb uses.
package snap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"arbor/internal/engine"
	"arbor/internal/logging"
	"arbor/internal/prompt"
	"arbor/internal/workspace"
)

// Decider asks the user the post-exit questions. *prompt.Prompter is
// the interactive implementation; tests stub it.
type Decider interface {
	Select(title string, choices []prompt.Choice) (string, error)
	CommitMessage() (string, error)
}

// Orchestrator runs one snap session over one worktree.
type Orchestrator struct {
	ws      *workspace.Manager
	engine  *engine.Engine
	decider Decider
	logger  *logging.ScopedLogger

	runAgentFn func(ctx context.Context, command, dir string, transcript *transcriptWriter) (agentResult, error)
}

// New creates an Orchestrator.
func New(ws *workspace.Manager, eng *engine.Engine, decider Decider, logger *logging.ScopedLogger) *Orchestrator {
	return &Orchestrator{
		ws:      ws,
		engine:  eng,
		decider: decider,
		logger:  logger,
		runAgentFn: func(ctx context.Context, command, dir string, transcript *transcriptWriter) (agentResult, error) {
			return runAgent(ctx, command, dir, transcript)
		},
	}
}

// Run supervises the agent command in the given worktree until a final
// decision is reached. The returned exit code is the process exit code
// for the whole invocation: the agent's own code on abnormal exit, 0
// otherwise (a conflict-suspended merge surfaces as an error the caller
// maps to its own code).
func (o *Orchestrator) Run(ctx context.Context, tree *workspace.Tree, command string) (int, error) {
	lockPath := filepath.Join(o.ws.ProjectDir(), tree.Branch+".lock")
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return 1, fmt.Errorf("acquiring session lock: %w", err)
	}
	if !locked {
		return 1, fmt.Errorf("another snap session is already supervising worktree %q", tree.Branch)
	}
	defer func() {
		_ = fl.Unlock()
		_ = os.Remove(lockPath)
	}()

	transcriptPath := filepath.Join(o.ws.ProjectDir(), tree.Branch+".transcript.log")
	logFile, err := os.OpenFile(transcriptPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 1, fmt.Errorf("opening transcript %s: %w", transcriptPath, err)
	}
	defer func() { _ = logFile.Close() }()

	for {
		o.logger.Info("agent starting", "branch", tree.Branch, "command", command)
		transcript := newTranscriptWriter(logFile)
		result, err := o.runAgentFn(ctx, command, tree.Path, transcript)
		_ = transcript.Flush()
		if err != nil {
			return 1, err
		}
		if result.Signalled {
			// Crash or signal: leave everything as-is, no prompting.
			o.logger.Warn("agent terminated abnormally", "branch", tree.Branch, "code", result.ExitCode)
			return result.ExitCode, nil
		}
		o.logger.Info("agent exited", "branch", tree.Branch, "code", result.ExitCode)

		again, code, err := o.decide(ctx, tree)
		if !again {
			return code, err
		}
	}
}

// decide inspects the worktree and walks the decision table. It returns
// again=true when the agent should be respawned.
func (o *Orchestrator) decide(ctx context.Context, tree *workspace.Tree) (again bool, code int, err error) {
	situation, err := o.classifyTree(ctx, tree)
	if err != nil {
		return false, 1, err
	}

	switch situation {
	case SituationClean:
		fmt.Fprintf(os.Stderr, "No changes in %s, cleaning up.\n", tree.Branch)
		if err := o.ws.RemoveTree(ctx, tree, false); err != nil {
			return false, 1, err
		}
		return false, 0, nil

	case SituationDirty:
		choice, err := o.decider.Select("Uncommitted changes in "+tree.Branch, ChoicesFor(SituationDirty))
		if err != nil {
			if errors.Is(err, prompt.ErrCancelled) {
				return false, 0, nil // leave the tree intact
			}
			return false, 1, err
		}
		switch choice {
		case ChoiceReopen:
			return true, 0, nil
		case ChoiceLeave:
			return false, 0, nil
		case ChoiceCommit:
			if err := o.commitAll(ctx, tree); err != nil {
				if errors.Is(err, prompt.ErrCancelled) {
					return false, 0, nil
				}
				return false, 1, err
			}
			// Fall through to the merge decision on the fresh commit.
			return o.decide(ctx, tree)
		}
		return false, 0, nil

	default: // SituationCommitted
		choice, err := o.decider.Select("Committed work in "+tree.Branch, ChoicesFor(SituationCommitted))
		if err != nil {
			if errors.Is(err, prompt.ErrCancelled) {
				return false, 0, nil
			}
			return false, 1, err
		}
		if choice != ChoiceMerge {
			return false, 0, nil
		}
		if err := o.engine.Merge(ctx, engine.MergeRequest{Branch: tree.Branch}); err != nil {
			return false, 1, err
		}
		return false, 0, nil
	}
}

func (o *Orchestrator) classifyTree(ctx context.Context, tree *workspace.Tree) (Situation, error) {
	treeGit := o.ws.Git().In(tree.Path)
	dirty, err := treeGit.HasUncommitted(ctx)
	if err != nil {
		return 0, err
	}
	base := ""
	if tree.Meta != nil {
		base = tree.Meta.BaseCommit
	}
	if base == "" {
		if base, err = o.ws.Trunk(ctx); err != nil {
			return 0, err
		}
	}
	ahead, err := treeGit.CommitsAhead(ctx, base)
	if err != nil {
		return 0, err
	}
	return Classify(dirty, ahead), nil
}

func (o *Orchestrator) commitAll(ctx context.Context, tree *workspace.Tree) error {
	message, err := o.decider.CommitMessage()
	if err != nil {
		return err
	}
	treeGit := o.ws.Git().In(tree.Path)
	if err := treeGit.StageAll(ctx); err != nil {
		return err
	}
	if err := treeGit.Commit(ctx, message); err != nil {
		return err
	}
	o.logger.Info("changes committed", "branch", tree.Branch)
	return nil
}
