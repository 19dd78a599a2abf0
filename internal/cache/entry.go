// Package cache owns the local side of the mirror: the on-disk DWG files
// under the cache directory and the sqlite index recording what was last
// synced for each of them.
package cache

import "time"

// State describes where a cached file stands relative to the remote store.
type State string

const (
	// StateSynced means the file matched the remote copy at the last
	// successful reconciliation.
	StateSynced State = "synced"

	// StatePendingUpload means a local change has not reached the remote
	// store yet (new file, or an upload that failed and will be retried).
	StatePendingUpload State = "pending_upload"

	// StatePendingDownload means a remote copy is known but the local
	// transfer has not completed.
	StatePendingDownload State = "pending_download"

	// StateConflict means local and remote diverged with no reliable
	// winner; resolution is manual.
	StateConflict State = "conflict"
)

// Entry is one file in the local cache index.
//
// Size and ModTime are the local file's stats as of the last successful
// sync; Fingerprint is the remote ETag recorded at that moment. The index
// is mutated only by the sync executor, after an action completes.
type Entry struct {
	Path        string
	Size        int64
	ModTime     time.Time
	Fingerprint string
	State       State
}

// FileInfo is one file found by a cache directory scan: local stats plus a
// content fingerprint (MD5). Scans never touch the index or the network.
type FileInfo struct {
	Path        string
	Size        int64
	ModTime     time.Time
	Fingerprint string
}
