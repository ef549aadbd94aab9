package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JesseWaas/fs-audit/internal/audit"
)

// IgnoreMatcher checks file and directory base names against a set of glob
// patterns (filepath.Match syntax). It backs the walker's ignore predicate:
// a matched directory is pruned, a matched file is never audited.
type IgnoreMatcher struct {
	patterns []string
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped so pattern lists can
// come straight from an ignore file.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []string
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, raw)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the given base name matches any pattern.
func (m *IgnoreMatcher) Match(name string) bool {
	if name == "" {
		return false
	}
	for _, p := range m.patterns {
		matched, err := filepath.Match(p, name)
		if err != nil {
			// Bad pattern, skip it.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// Predicate adapts the matcher to the walker's predicate contract.
func (m *IgnoreMatcher) Predicate() audit.IgnorePredicate {
	return m.Match
}

// Patterns returns the parsed patterns, for snapshot provenance.
func (m *IgnoreMatcher) Patterns() []string {
	return m.patterns
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
