// Package discover finds deobfuscation candidates under a directory for
// the batch subcommand: a directory walk narrowed to a single glob over
// one source family, honoring .gitignore and a fixed skip-dir list.
package discover

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"dist":         {},
	"build":        {},
	".cache":       {},
}

// Files walks root and returns every regular file matching glob (default
// "*.js"), honoring .gitignore and the fixed skip-dir list, sorted for a
// deterministic batch order: batch mode runs the single-file pipeline once
// per file, independently, never sharing state across runs.
func Files(root string, glob string) ([]string, error) {
	if glob == "" {
		glob = "*.js"
	}
	gi := loadGitignore(root)

	var results []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		matched, err := filepath.Match(glob, name)
		if err != nil || !matched {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
