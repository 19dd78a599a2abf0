package sync

import (
	"testing"
	"time"

	"github.com/EduardoaMelegari/banco-projetos/internal/cache"
	"github.com/EduardoaMelegari/banco-projetos/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func remoteEntry(path, etag string, mod time.Time) *remote.Entry {
	return &remote.Entry{Path: path, Size: int64(len(etag)), ETag: etag, LastModified: mod}
}

func localFile(path, fingerprint string, mod time.Time) *cache.FileInfo {
	return &cache.FileInfo{Path: path, Size: int64(len(fingerprint)), ModTime: mod, Fingerprint: fingerprint}
}

func indexEntry(path, fingerprint string, state cache.State, mod time.Time) *cache.Entry {
	return &cache.Entry{Path: path, Size: int64(len(fingerprint)), ModTime: mod, Fingerprint: fingerprint, State: state}
}

func defaultOpts() DiffOptions {
	return DiffOptions{ResurrectPendingUploads: true}
}

func singleAction(t *testing.T, plan *Plan) *Action {
	t.Helper()
	require.Len(t, plan.Actions, 1)
	return plan.Actions[0]
}

func TestBuildPlan_DecisionTable(t *testing.T) {
	cases := []struct {
		name       string
		remote     []*remote.Entry
		local      map[string]*cache.FileInfo
		indexed    map[string]*cache.Entry
		opts     *DiffOptions
		wantKind ActionKind
	}{
		{
			name:     "remote only downloads",
			remote:   []*remote.Entry{remoteEntry("a.dwg", "f1", baseTime)},
			wantKind: ActionDownload,
		},
		{
			name:     "local only with no index uploads",
			local:    map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f1", baseTime)},
			wantKind: ActionUpload,
		},
		{
			name:     "local pending upload wins over remote delete",
			local:    map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f1", baseTime)},
			indexed:  map[string]*cache.Entry{"a.dwg": indexEntry("a.dwg", "f0", cache.StatePendingUpload, baseTime)},
			wantKind: ActionUpload,
		},
		{
			name:     "local pending upload conflicts when resurrection disabled",
			local:    map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f1", baseTime)},
			indexed:  map[string]*cache.Entry{"a.dwg": indexEntry("a.dwg", "f0", cache.StatePendingUpload, baseTime)},
			opts:     &DiffOptions{ResurrectPendingUploads: false},
			wantKind: ActionConflict,
		},
		{
			name:     "synced local deleted on remote",
			local:    map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f1", baseTime)},
			indexed:  map[string]*cache.Entry{"a.dwg": indexEntry("a.dwg", "f1", cache.StateSynced, baseTime)},
			wantKind: ActionDeleteLocal,
		},
		{
			name:     "equal fingerprints skip",
			remote:   []*remote.Entry{remoteEntry("a.dwg", "f1", baseTime)},
			local:    map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f1", baseTime)},
			wantKind: ActionSkip,
		},
		{
			name:     "diverged local newer uploads",
			remote:   []*remote.Entry{remoteEntry("a.dwg", "f1", baseTime)},
			local:    map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f2", baseTime.Add(time.Minute))},
			wantKind: ActionUpload,
		},
		{
			name:     "diverged remote newer downloads",
			remote:   []*remote.Entry{remoteEntry("a.dwg", "f1", baseTime.Add(time.Minute))},
			local:    map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f2", baseTime)},
			wantKind: ActionDownload,
		},
		{
			name:     "diverged equal timestamps conflict",
			remote:   []*remote.Entry{remoteEntry("a.dwg", "f1", baseTime)},
			local:    map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f2", baseTime)},
			wantKind: ActionConflict,
		},
		{
			name:     "diverged unknown timestamp conflict",
			remote:   []*remote.Entry{remoteEntry("a.dwg", "f1", time.Time{})},
			local:    map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f2", baseTime)},
			wantKind: ActionConflict,
		},
		{
			name:     "remote deleted while pending download conflicts",
			local:    map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f1", baseTime)},
			indexed:  map[string]*cache.Entry{"a.dwg": indexEntry("a.dwg", "f1", cache.StatePendingDownload, baseTime)},
			wantKind: ActionConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := defaultOpts()
			if tc.opts != nil {
				opts = *tc.opts
			}
			plan := BuildPlan(tc.remote, tc.local, tc.indexed, opts)
			action := singleAction(t, plan)
			assert.Equal(t, tc.wantKind, action.Kind)
			assert.NotEmpty(t, action.Reason)
		})
	}
}

func TestBuildPlan_SubSecondTimestampDifferenceIsAmbiguous(t *testing.T) {
	// S3 timestamps have second precision; a sub-second local delta is
	// noise, not a signal, so the tie-break still refuses to guess.
	plan := BuildPlan(
		[]*remote.Entry{remoteEntry("a.dwg", "f1", baseTime)},
		map[string]*cache.FileInfo{"a.dwg": localFile("a.dwg", "f2", baseTime.Add(300*time.Millisecond))},
		nil,
		defaultOpts(),
	)
	assert.Equal(t, ActionConflict, singleAction(t, plan).Kind)
}

func TestBuildPlan_MultipartETagMatchesThroughIndex(t *testing.T) {
	// remote etag "abc-4" can never equal a local md5, but the index
	// recorded this exact remote version at the last sync and the local
	// file is unchanged since
	plan := BuildPlan(
		[]*remote.Entry{remoteEntry("a.dwg", "abc-4", baseTime)},
		map[string]*cache.FileInfo{"a.dwg": {Path: "a.dwg", Size: 5, ModTime: baseTime, Fingerprint: "md5md5"}},
		map[string]*cache.Entry{"a.dwg": {Path: "a.dwg", Size: 5, ModTime: baseTime, Fingerprint: "abc-4", State: cache.StateSynced}},
		defaultOpts(),
	)
	assert.Equal(t, ActionSkip, singleAction(t, plan).Kind)
}

func TestBuildPlan_StaleIndexRowBecomesCleanup(t *testing.T) {
	plan := BuildPlan(
		nil,
		nil,
		map[string]*cache.Entry{"gone.dwg": indexEntry("gone.dwg", "f1", cache.StateSynced, baseTime)},
		defaultOpts(),
	)
	assert.Empty(t, plan.Actions)
	assert.Equal(t, []string{"gone.dwg"}, plan.Cleanups)
	assert.True(t, plan.HasChanges())
}

func TestBuildPlan_LexicographicOrderAndOneActionPerPath(t *testing.T) {
	remoteEntries := []*remote.Entry{
		remoteEntry("drawings/z.dwg", "f1", baseTime),
		remoteEntry("drawings/a.dwg", "f2", baseTime),
		remoteEntry("drawings/a.dwg", "f2-dup", baseTime), // stale duplicate
	}
	local := map[string]*cache.FileInfo{
		"drawings/m.dwg": localFile("drawings/m.dwg", "f3", baseTime),
	}

	plan := BuildPlan(remoteEntries, local, nil, defaultOpts())

	var paths []string
	seen := map[string]bool{}
	for _, a := range plan.Actions {
		require.False(t, seen[a.Path], "duplicate action for %s", a.Path)
		seen[a.Path] = true
		paths = append(paths, a.Path)
	}
	assert.Equal(t, []string{"drawings/a.dwg", "drawings/m.dwg", "drawings/z.dwg"}, paths)
}

func TestBuildPlan_IsDeterministic(t *testing.T) {
	remoteEntries := []*remote.Entry{
		remoteEntry("c.dwg", "f1", baseTime),
		remoteEntry("a.dwg", "f2", baseTime),
		remoteEntry("b.dwg", "f3", baseTime),
	}
	local := map[string]*cache.FileInfo{
		"b.dwg": localFile("b.dwg", "f3", baseTime),
		"d.dwg": localFile("d.dwg", "f4", baseTime),
	}

	first := BuildPlan(remoteEntries, local, nil, defaultOpts())
	for i := 0; i < 10; i++ {
		again := BuildPlan(remoteEntries, local, nil, defaultOpts())
		require.Len(t, again.Actions, len(first.Actions))
		for i, a := range again.Actions {
			assert.Equal(t, first.Actions[i].Path, a.Path)
			assert.Equal(t, first.Actions[i].Kind, a.Kind)
		}
	}
}
