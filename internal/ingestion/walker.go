// Package ingestion discovers declaration-tree inputs and feeds them through
// extraction sessions into a fact store.
package ingestion

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/zeebo/xxh3"
)

// DefaultInputExt is the suffix of front-end output files.
const DefaultInputExt = ".ir.json"

// InputFile is one declaration-tree file to extract.
type InputFile struct {
	// Path is the file path as found on disk.
	Path string

	// RelPath is the path relative to the walked root.
	RelPath string

	// Content is the file content.
	Content []byte

	// Hash is the xxh3 fingerprint of Content.
	Hash uint64
}

// Fingerprint renders the input's hash for use in store keys.
func (f InputFile) Fingerprint() string {
	return fmt.Sprintf("%016x", f.Hash)
}

// Default patterns to ignore, in addition to .gitignore.
var defaultIgnorePatterns = []string{
	".git/",
	".irfacts/",
	"node_modules/",
	".gradle/",
	".idea/",
}

// WalkInputs returns every file under root whose name ends in ext, skipping
// ignored paths. A root that is itself a file is returned as the only input.
func WalkInputs(root, ext string, patterns []gitignore.Pattern) ([]InputFile, error) {
	if ext == "" {
		ext = DefaultInputExt
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		in, err := readInput(root, filepath.Base(root))
		if err != nil {
			return nil, err
		}
		return []InputFile{in}, nil
	}

	matcher := newMatcher(patterns)

	var inputs []InputFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if matcher.Match(splitPath(rel), true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isInput(d.Name(), ext) || matcher.Match(splitPath(rel), false) {
			return nil
		}
		in, err := readInput(path, rel)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].RelPath < inputs[j].RelPath })
	return inputs, nil
}

func readInput(path, rel string) (InputFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return InputFile{}, err
	}
	return InputFile{Path: path, RelPath: rel, Content: content, Hash: xxh3.Hash(content)}, nil
}

// LoadGitignore loads .gitignore patterns from root. A missing file yields
// no patterns, as does a root that is not a directory.
func LoadGitignore(root string) ([]gitignore.Pattern, error) {
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return nil, nil
	}
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

// loadMatcher returns a matcher over the default patterns and root's
// .gitignore.
func loadMatcher(root string) (gitignore.Matcher, error) {
	patterns, err := LoadGitignore(root)
	if err != nil {
		return nil, err
	}
	return newMatcher(patterns), nil
}

// newMatcher returns a matcher over the default patterns followed by
// patterns.
func newMatcher(patterns []gitignore.Pattern) gitignore.Matcher {
	all := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(patterns))
	for _, p := range defaultIgnorePatterns {
		all = append(all, gitignore.ParsePattern(p, nil))
	}
	return gitignore.NewMatcher(append(all, patterns...))
}

func isInput(name, ext string) bool {
	return strings.HasSuffix(strings.ToLower(name), ext)
}

func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
