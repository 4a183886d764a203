package sync

import (
	"bufio"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/openmined/foldersync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is the optional per-user ignore file inside the data dir.
const IgnoreFileName = "foldersyncignore"

var defaultIgnoreLines = []string{
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	// editors
	"*.swp",
	".~lock.*",
}

// SyncIgnoreList excludes relative paths from enumeration. A nil list ignores nothing.
type SyncIgnoreList struct {
	lines  []string
	ignore *gitignore.GitIgnore
}

// DefaultIgnorePatterns returns the OS and editor scratch file rules. They are not part of a
// list unless passed to NewSyncIgnoreList.
func DefaultIgnorePatterns() []string {
	return slices.Clone(defaultIgnoreLines)
}

// NewSyncIgnoreList compiles patterns in order.
func NewSyncIgnoreList(patterns ...string) *SyncIgnoreList {
	s := &SyncIgnoreList{}
	s.compile(patterns)
	return s
}

// LoadFile appends the rules of a gitignore style file. A missing file is not an error.
func (s *SyncIgnoreList) LoadFile(path string) error {
	if !utils.FileExists(path) {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var extra []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			extra = append(extra, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	s.compile(append(slices.Clone(s.lines), extra...))
	slog.Info("loaded ignore file", "path", path, "rules", len(extra))
	return nil
}

func (s *SyncIgnoreList) compile(patterns []string) {
	lines := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	s.lines = lines
	s.ignore = gitignore.CompileIgnoreLines(lines...)
}

// Rules returns the compiled rule lines.
func (s *SyncIgnoreList) Rules() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.lines...)
}

// ShouldIgnore reports whether the file at relPath is excluded.
func (s *SyncIgnoreList) ShouldIgnore(relPath string) bool {
	if s == nil || s.ignore == nil {
		return false
	}
	return s.ignore.MatchesPath(relPath)
}

// ShouldIgnoreDir reports whether the directory at relPath, and so its whole subtree, is
// excluded. Directory-only rules ("build/") match here as well.
func (s *SyncIgnoreList) ShouldIgnoreDir(relPath string) bool {
	if s == nil || s.ignore == nil {
		return false
	}
	return s.ignore.MatchesPath(relPath) || s.ignore.MatchesPath(relPath+utils.RelPathSep)
}
