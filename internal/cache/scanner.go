package cache

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/EduardoaMelegari/banco-projetos/internal/utils"
)

// Scanner walks the cache directory and produces the local file inventory.
// Fingerprints are expensive, so results of the previous scan are kept and
// reused for any file whose size and mtime are unchanged.
type Scanner struct {
	rootDir   string
	ignore    *IgnoreList
	lastState map[string]*FileInfo
}

func NewScanner(rootDir string, ignore *IgnoreList) *Scanner {
	return &Scanner{
		rootDir:   rootDir,
		ignore:    ignore,
		lastState: make(map[string]*FileInfo),
	}
}

// Scan walks the cache dir and returns the current inventory keyed by
// logical path. It never mutates the index and never touches the network.
func (s *Scanner) Scan() (map[string]*FileInfo, error) {
	newState := make(map[string]*FileInfo)

	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk error: %w", walkErr)
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("failed to stat file", "path", path, "error", err)
			return nil // skip this file
		}

		relPath, err := filepath.Rel(s.rootDir, path)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		relPath = utils.NormPath(relPath)

		if s.ignore != nil && s.ignore.ShouldIgnore(relPath) {
			return nil
		}

		// cheap check before the expensive one: reuse the previous
		// fingerprint when size and mtime are unchanged
		var fingerprint string
		if prev, ok := s.lastState[relPath]; ok && prev.Size == info.Size() && prev.ModTime.Equal(info.ModTime()) {
			fingerprint = prev.Fingerprint
		} else {
			fingerprint, err = utils.FileHash(path)
			if err != nil {
				slog.Warn("failed to fingerprint file", "path", path, "error", err)
				return nil // skip this file
			}
		}

		newState[relPath] = &FileInfo{
			Path:        relPath,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Fingerprint: fingerprint,
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("local scan failed: %w", err)
	}

	s.lastState = newState
	return newState, nil
}
