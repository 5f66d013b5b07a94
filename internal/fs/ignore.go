package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-source ignore file read from the archive root.
const IgnoreFileName = ".ustarignore"

// defaultIgnorePatterns are always applied regardless of config or .ustarignore.
var defaultIgnorePatterns = []string{IgnoreFileName}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against archive path; false = match against basename only
}

// IgnoreMatcher checks archive paths against a set of ignore patterns.
// Patterns without '/' match against the entry's basename only.
// Patterns with '/' match against the full slash-separated archive path.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   strings.TrimSuffix(raw, "/"),
			matchPath: strings.Contains(strings.TrimSuffix(raw, "/"), "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// LoadIgnoreMatcher combines the default patterns, the configured patterns
// and the ignore file at the root of sourceDir, if there is one.
func LoadIgnoreMatcher(sourceDir string, configured []string) (*IgnoreMatcher, error) {
	fromFile, err := ParseIgnoreFile(filepath.Join(sourceDir, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	raw := make([]string, 0, len(defaultIgnorePatterns)+len(configured)+len(fromFile))
	raw = append(raw, defaultIgnorePatterns...)
	raw = append(raw, configured...)
	raw = append(raw, fromFile...)
	return NewIgnoreMatcher(raw), nil
}

// Match reports whether the given archive path should be ignored.
// archivePath is slash-separated and relative to the archive root.
func (m *IgnoreMatcher) Match(archivePath string) bool {
	if len(m.patterns) == 0 || archivePath == "" {
		return false
	}

	basename := path.Base(archivePath)

	for _, p := range m.patterns {
		var matched bool
		var err error
		if p.matchPath {
			matched, err = path.Match(p.pattern, archivePath)
		} else {
			matched, err = path.Match(p.pattern, basename)
		}
		if err != nil {
			// Bad pattern: skip rather than crash.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
