package cache

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/EduardoaMelegari/banco-projetos/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// ignoreFileName is an optional gitignore-style file in the cache dir for
// user-defined exclusions.
const ignoreFileName = "dwgignore"

// defaultIgnoreLines excludes AutoCAD litter and OS noise from scans.
var defaultIgnoreLines = []string{
	// AutoCAD working files
	"*.bak",
	"*.dwl",
	"*.dwl2",
	"*.sv$",
	"*.ac$",
	// general excludes
	"*.tmp",
	"*.log",
	".*",
	ignoreFileName,
	// OS-specific
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList filters cache-relative paths out of local scans.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir}
}

// Load compiles the default rules plus any dwgignore file in the cache dir.
func (il *IgnoreList) Load() {
	lines := defaultIgnoreLines

	ignorePath := filepath.Join(il.baseDir, ignoreFileName)
	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open dwgignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			rules := 0
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				if line := scanner.Text(); line != "" {
					lines = append(lines, line)
					rules++
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("error reading dwgignore file", "path", ignorePath, "error", err)
			} else if rules > 0 {
				slog.Info("loaded dwgignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	il.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore reports whether the cache-relative path is excluded.
func (il *IgnoreList) ShouldIgnore(relPath string) bool {
	if il.ignore == nil {
		il.Load()
	}
	return il.ignore.MatchesPath(relPath)
}
