// Package discover finds documentation sources in a project.
package discover

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Format is the markup a source is written in.
type Format string

const (
	RST      Format = "rst"
	Markdown Format = "md"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path    string // Relative to the project root, slash separated
	DocName string // Path without its suffix
	Format  Format
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	".git":         {},
	".hg":          {},
	".svn":         {},
}

// FormatFor maps a file suffix to its markup. Unknown suffixes read as RST.
func FormatFor(suffix string) Format {
	switch strings.ToLower(suffix) {
	case ".md", ".markdown":
		return Markdown
	default:
		return RST
	}
}

// Matcher decides whether a relative path is excluded from the build.
type Matcher struct {
	gitignore *ignore.GitIgnore
	excludes  *ignore.GitIgnore
	suffixes  []string
}

// NewMatcher combines root/.gitignore with the configured exclude patterns,
// which use gitignore syntax.
func NewMatcher(root string, suffixes, excludes []string) *Matcher {
	m := &Matcher{suffixes: suffixes}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		m.gitignore = gi
	}
	if len(excludes) > 0 {
		m.excludes = ignore.CompileIgnoreLines(excludes...)
	}
	return m
}

// Excluded reports whether rel is ignored.
func (m *Matcher) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	if m.excludes != nil && m.excludes.MatchesPath(rel) {
		return true
	}
	return m.gitignore != nil && m.gitignore.MatchesPath(rel)
}

// Source reports whether rel has one of the source suffixes and is not
// excluded.
func (m *Matcher) Source(rel string) bool {
	return slices.Contains(m.suffixes, filepath.Ext(rel)) && !m.Excluded(rel)
}

// Entry describes rel as a source file.
func (m *Matcher) Entry(rel string) FileEntry {
	rel = filepath.ToSlash(rel)
	ext := filepath.Ext(rel)
	return FileEntry{Path: rel, DocName: strings.TrimSuffix(rel, ext), Format: FormatFor(ext)}
}

// Files discovers documentation sources under root.
func Files(root string, suffixes, excludes []string) ([]FileEntry, error) {
	m := NewMatcher(root, suffixes, excludes)

	var results []FileEntry
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") || m.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if m.Source(rel) {
			results = append(results, m.Entry(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
	return results, nil
}
