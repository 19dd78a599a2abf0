// Package sync implements the reconciliation engine: diffing the remote
// bucket listing against the local cache, and executing the resulting plan.
package sync

import (
	"github.com/EduardoaMelegari/banco-projetos/internal/cache"
	"github.com/EduardoaMelegari/banco-projetos/internal/remote"
)

// ActionKind is the decision taken for one path.
type ActionKind string

const (
	ActionUpload       ActionKind = "upload"
	ActionDownload     ActionKind = "download"
	ActionDeleteLocal  ActionKind = "delete_local"
	ActionDeleteRemote ActionKind = "delete_remote"
	ActionSkip         ActionKind = "skip"
	ActionConflict     ActionKind = "conflict"
)

// Action is one planned operation. Local and Remote carry the snapshots the
// decision was made from, so the executor never has to re-stat or re-hash.
type Action struct {
	Path   string
	Kind   ActionKind
	Reason string

	Local   *cache.FileInfo
	Remote  *remote.Entry
	Indexed *cache.Entry
}

/// Plan is the ordered outcome of one diff: at most one action per path, in
// lexicographic path order for reproducible dry-run output. Plans are
// ephemeral and never persisted.
type Plan struct {
	Actions []*Action

	// Cleanups are index rows whose file is gone on both sides; the
	// executor drops them from the index in live mode.
	Cleanups []string
}

// HasChanges reports whether the plan contains anything beyond skips.
func (p *Plan) HasChanges() bool {
	for _, a := range p.Actions {
		if a.Kind != ActionSkip {
			return true
		}
	}
	return len(p.Cleanups) > 0
}

// Counts returns the number of actions per kind.
func (p *Plan) Counts() map[ActionKind]int {
	counts := make(map[ActionKind]int)
	for _, a := range p.Actions {
		counts[a.Kind]++
	}
	return counts
}

// Outcome is the result classification of one executed action.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeFailed        Outcome = "failed"
	OutcomeSkippedDryRun Outcome = "skipped_dry_run"
	OutcomeConflict      Outcome = "conflict"
)

// Result is the per-action outcome of plan execution.
type Result struct {
	Path    string
	Kind    ActionKind
	Outcome Outcome
	Err     error
}

// Summary aggregates results for one sync session. A session always ends
// with a summary, even when every action failed.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Conflicts int
	DryRun    int
}

func Summarize(results []*Result) *Summary {
	s := &Summary{}
	for _, r := range results {
		switch {
		case r.Outcome == OutcomeSkippedDryRun:
			s.DryRun++
		case r.Outcome == OutcomeConflict:
			s.Conflicts++
		case r.Outcome == OutcomeFailed:
			s.Failed++
		case r.Kind == ActionSkip:
			s.Skipped++
		default:
			s.Succeeded++
		}
	}
	return s
}
