// pattern: Functional Core

package snap

import "arbor/internal/prompt"

// Situation classifies a worktree after the agent exits normally. It
// determines which, if any, decision menu the user sees.
type Situation int

const (
	// SituationClean: no uncommitted changes and no commits ahead of
	// base. The worktree is discarded without prompting.
	SituationClean Situation = iota
	// SituationCommitted: committed work, clean tree. Choose between
	// merging now and leaving the tree for a later manual merge.
	SituationCommitted
	// SituationDirty: uncommitted changes present. Choose between
	// committing then merging, reopening the agent, and leaving.
	SituationDirty
)

// Decision keys returned by the menus.
const (
	ChoiceMerge  = "merge"
	ChoiceLeave  = "leave"
	ChoiceCommit = "commit"
	ChoiceReopen = "reopen"
)

// Classify maps the worktree's post-exit status to a Situation.
func Classify(hasUncommitted bool, commitsAhead int) Situation {
	switch {
	case hasUncommitted:
		return SituationDirty
	case commitsAhead > 0:
		return SituationCommitted
	default:
		return SituationClean
	}
}

// ChoicesFor returns the menu for a situation, or nil when no prompt is
// needed.
func ChoicesFor(s Situation) []prompt.Choice {
	switch s {
	case SituationCommitted:
		return []prompt.Choice{
			{Key: ChoiceMerge, Label: "Merge into trunk now"},
			{Key: ChoiceLeave, Label: "Exit, keep the worktree for a later merge"},
		}
	case SituationDirty:
		return []prompt.Choice{
			{Key: ChoiceCommit, Label: "Commit everything, then decide about merging"},
			{Key: ChoiceReopen, Label: "Reopen the agent to keep working"},
			{Key: ChoiceLeave, Label: "Exit, keep the worktree and its changes"},
		}
	default:
		return nil
	}
}
