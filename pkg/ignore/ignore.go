// Package ignore implements gitignore-style pattern matching for filtering file paths.
package ignore

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileName is the per-project ignore file read by the loader.
const FileName = ".tilerefignore"

type pattern struct {
	raw      string
	negated  bool
	dirOnly  bool
	anchored bool
	glob     string
}

// Matcher evaluates file paths against a set of gitignore-style patterns.
type Matcher struct {
	patterns []pattern
}

// Load reads patterns from a file, one per line. A missing file yields an
// empty matcher.
func Load(file string) (*Matcher, error) {
	f, err := os.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return &Matcher{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ParsePatterns(lines), nil
}

// ParsePatterns builds a Matcher from raw pattern lines.
func ParsePatterns(lines []string) *Matcher {
	return (&Matcher{}).With(lines...)
}

// With returns a matcher holding m's patterns followed by lines. Later
// patterns take precedence, as in gitignore.
func (m *Matcher) With(lines ...string) *Matcher {
	out := &Matcher{}
	if m != nil {
		out.patterns = append(out.patterns, m.patterns...)
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p := pattern{raw: line}

		if strings.HasPrefix(line, "!") {
			p.negated = true
			line = line[1:]
		}

		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}

		if strings.HasPrefix(line, "/") {
			line = strings.TrimPrefix(line, "/")
			p.anchored = true
		}
		if strings.Contains(line, "/") {
			p.anchored = true
		}

		p.glob = line
		out.patterns = append(out.patterns, p)
	}
	return out
}

func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

// Match returns true if the given path should be ignored.
// The path should be slash-separated and relative to the project root.
// isDir indicates whether the path refers to a directory. A path inside an
// ignored directory is ignored too.
func (m *Matcher) Match(name string, isDir bool) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	parts := strings.Split(name, "/")
	for i := 1; i < len(parts); i++ {
		if m.match(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return m.match(name, isDir)
}

func (m *Matcher) match(name string, isDir bool) bool {
	ignored := false
	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if matchPattern(p, name) {
			ignored = !p.negated
		}
	}
	return ignored
}

// matchPattern checks whether a gitignore pattern matches the given path.
// Anchored patterns match against the full path.
// Other patterns match against any single path component.
func matchPattern(p pattern, name string) bool {
	if p.anchored {
		return MatchGlob(p.glob, name)
	}

	for _, part := range strings.Split(name, "/") {
		if matched, _ := path.Match(p.glob, part); matched {
			return true
		}
	}
	return false
}

// MatchGlob matches a slash-separated path against a glob in which "**"
// stands for any number of path segments, including none.
func MatchGlob(glob, name string) bool {
	return matchSegments(strings.Split(glob, "/"), strings.Split(name, "/"))
}

func matchSegments(glob, name []string) bool {
	for len(glob) > 0 {
		if glob[0] == "**" {
			rest := glob[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if matched, _ := path.Match(glob[0], name[0]); !matched {
			return false
		}
		glob, name = glob[1:], name[1:]
	}
	return len(name) == 0
}

// HasGlob reports whether s contains glob metacharacters.
func HasGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
