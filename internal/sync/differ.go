package sync

import (
	"sort"
	"time"

	"github.com/EduardoaMelegari/banco-projetos/internal/cache"
	"github.com/EduardoaMelegari/banco-projetos/internal/remote"
)

// DiffOptions tune the decision table.
type DiffOptions struct {
	// ResurrectPendingUploads controls the "remote absent, local pending
	// upload" row. True (the default policy) means the local copy wins and
	// is re-uploaded, on the assumption that the remote deletion simply
	// hasn't seen our pending change. False reports a conflict instead, so
	// an intentionally deleted remote file is never silently resurrected.
	ResurrectPendingUploads bool
}

// BuildPlan applies the decision table to one consistent snapshot of the
// remote listing, the local scan, and the cache index. Paths are processed
// in lexicographic order and each path gets exactly one action, so repeated
// calls over the same snapshots produce identical plans.
func BuildPlan(remoteEntries []*remote.Entry, localFiles map[string]*cache.FileInfo, indexed map[string]*cache.Entry, opts DiffOptions) *Plan {
	remoteByPath := make(map[string]*remote.Entry, len(remoteEntries))
	for _, entry := range remoteEntries {
		// listing is already deduplicated; keep first on a stale dup
		if _, ok := remoteByPath[entry.Path]; !ok {
			remoteByPath[entry.Path] = entry
		}
	}

	allPaths := make(map[string]struct{}, len(remoteByPath)+len(localFiles)+len(indexed))
	for path := range remoteByPath {
		allPaths[path] = struct{}{}
	}
	for path := range localFiles {
		allPaths[path] = struct{}{}
	}
	for path := range indexed {
		allPaths[path] = struct{}{}
	}

	paths := make([]string, 0, len(allPaths))
	for path := range allPaths {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	plan := &Plan{}
	for _, path := range paths {
		rem := remoteByPath[path]
		local := localFiles[path]
		idx := indexed[path]

		if rem == nil && local == nil {
			// gone on both sides; the index row is stale
			if idx != nil {
				plan.Cleanups = append(plan.Cleanups, path)
			}
			continue
		}

		action := decide(path, rem, local, idx, opts)
		action.Local = local
		action.Remote = rem
		action.Indexed = idx
		plan.Actions = append(plan.Actions, action)
	}

	return plan
}

func decide(path string, rem *remote.Entry, local *cache.FileInfo, idx *cache.Entry, opts DiffOptions) *Action {
	switch {
	case rem != nil && local == nil:
		return &Action{Path: path, Kind: ActionDownload, Reason: "missing from local cache"}

	case rem == nil && local != nil:
		return decideLocalOnly(path, idx, opts)

	default: // present on both sides
		return decideBothPresent(path, rem, local, idx)
	}
}

// decideLocalOnly handles paths that exist locally but not in the remote
// listing. The index state tells us whether the file ever reached the
// remote store.
func decideLocalOnly(path string, idx *cache.Entry, opts DiffOptions) *Action {
	if idx == nil {
		// never synced: a brand-new local file awaiting its first upload
		return &Action{Path: path, Kind: ActionUpload, Reason: "new local file"}
	}

	switch idx.State {
	case cache.StatePendingUpload:
		if opts.ResurrectPendingUploads {
			return &Action{Path: path, Kind: ActionUpload, Reason: "pending upload, local wins"}
		}
		return &Action{Path: path, Kind: ActionConflict, Reason: "pending upload but remote copy deleted"}
	case cache.StateSynced:
		return &Action{Path: path, Kind: ActionDeleteLocal, Reason: "deleted on remote"}
	default:
		// PendingDownload or Conflict with the remote side gone: no
		// reliable winner, never guess
		return &Action{Path: path, Kind: ActionConflict, Reason: "remote deleted while state " + string(idx.State)}
	}
}

func decideBothPresent(path string, rem *remote.Entry, local *cache.FileInfo, idx *cache.Entry) *Action {
	if fingerprintsMatch(rem, local, idx) {
		return &Action{Path: path, Kind: ActionSkip, Reason: "fingerprints match"}
	}

	localMod := local.ModTime.Truncate(time.Second)
	remoteMod := rem.LastModified.Truncate(time.Second)

	switch {
	case localMod.IsZero() || remoteMod.IsZero():
		return &Action{Path: path, Kind: ActionConflict, Reason: "diverged, timestamps unknown"}
	case localMod.After(remoteMod):
		return &Action{Path: path, Kind: ActionUpload, Reason: "local copy newer"}
	case remoteMod.After(localMod):
		return &Action{Path: path, Kind: ActionDownload, Reason: "remote copy newer"}
	default:
		return &Action{Path: path, Kind: ActionConflict, Reason: "diverged, timestamps equal"}
	}
}

// fingerprintsMatch reports whether the local and remote copies hold the
// same content. The direct comparison covers plain-upload ETags (MD5); the
// index fallback covers multipart-style ETags the local hash can never
// reproduce: if this exact remote version was recorded at the last sync and
// the local file is unchanged since, the copies still match.
func fingerprintsMatch(rem *remote.Entry, local *cache.FileInfo, idx *cache.Entry) bool {
	if local.Fingerprint == rem.ETag {
		return true
	}
	if idx == nil || idx.State != cache.StateSynced {
		return false
	}
	return idx.Fingerprint == rem.ETag &&
		idx.Size == local.Size &&
		idx.ModTime.Equal(local.ModTime)
}
