package project

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/odvcencio/tileref/pkg/batch"
	"github.com/odvcencio/tileref/pkg/ignore"
	"github.com/odvcencio/tileref/pkg/lang"
	"github.com/odvcencio/tileref/pkg/lang/csharp"
	"github.com/odvcencio/tileref/pkg/rewrite"
	"github.com/odvcencio/tileref/pkg/sema"
	"github.com/odvcencio/tileref/pkg/syntax"
)

// WorkersEnv overrides the parse worker count when Options.Workers is zero.
const WorkersEnv = "TILEREF_PARSE_WORKERS"

type Options struct {
	// Workers bounds parallel parsing. Zero falls back to WorkersEnv, then
	// GOMAXPROCS.
	Workers int
	// Exclude holds ignore patterns applied after the project's ignore file.
	Exclude []string
	// TargetType and ExternalTypes are declared in the index even when no
	// project file defines them.
	TargetType    string
	ExternalTypes []string
	Parser        lang.Parser
	Logger        *slog.Logger
}

// File is one parsed source file of the project.
type File struct {
	Path string
	// RelPath is slash-separated and relative to the manifest directory. It
	// starts with "../" for files included from outside.
	RelPath string
	Source  []byte
	Root    *syntax.Node
}

type Project struct {
	Manifest *Manifest
	Files    []*File
	Index    *sema.Index
}

type diagnosingParser interface {
	ParseWithDiagnostics(path string, src []byte) (*syntax.Node, csharp.Diagnostics, error)
}

// Load reads the manifest, parses every compiled file and builds the
// finalized index. A file that cannot be read or parsed fails the load; all
// such failures are reported together.
func Load(manifestPath string, opts Options) (*Project, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	parser := opts.Parser
	if parser == nil {
		parser = csharp.NewParser()
	}

	m, err := ParseManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	ign, err := ignore.Load(filepath.Join(m.Dir, ignore.FileName))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ignore.FileName, err)
	}
	ign = ign.With(opts.Exclude...)

	exts := map[string]bool{}
	for _, ext := range parser.Extensions() {
		exts[normalizeExtension(ext)] = true
	}
	paths, err := collectFiles(m, ign, exts)
	if err != nil {
		return nil, err
	}
	logger.Debug("collected sources", "manifest", m.Path, "files", len(paths), "default_items", m.DefaultItems)

	results := parseFiles(paths, parseWorkerCount(opts.Workers, len(paths)), parser)
	project := &Project{Manifest: m, Files: make([]*File, 0, len(results))}
	var errs []error
	for i, result := range results {
		rel := relPath(m.Dir, paths[i])
		if result.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rel, result.err))
			continue
		}
		if !result.diagnostics.Clean() {
			logger.Warn("syntax errors, affected code is left unchanged",
				"file", rel, "errors", result.diagnostics.Errors, "missing", result.diagnostics.Missing)
		}
		project.Files = append(project.Files, &File{
			Path:    paths[i],
			RelPath: rel,
			Source:  result.source,
			Root:    result.root,
		})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	idx := sema.NewIndex()
	for _, file := range project.Files {
		if err := idx.AddFile(file.Root); err != nil {
			return nil, fmt.Errorf("index %s: %w", file.RelPath, err)
		}
	}
	if opts.TargetType != "" {
		idx.Declare(opts.TargetType)
	}
	for _, typ := range opts.ExternalTypes {
		if typ = strings.TrimSpace(typ); typ != "" {
			idx.Declare(typ)
		}
	}
	idx.Finalize()
	project.Index = idx

	logger.Info("loaded project", "manifest", m.Path, "files", len(project.Files), "types", len(idx.Types()))
	return project, nil
}

// Bind returns the semantic answers for one file of the project.
func (p *Project) Bind(root *syntax.Node) rewrite.Oracle {
	return sema.Bind(p.Index, root)
}

// Documents returns the files accepted by filter, all of them when filter
// is nil, ready for a batch run.
func (p *Project) Documents(filter func(*File) bool) []batch.Document {
	docs := make([]batch.Document, 0, len(p.Files))
	for _, file := range p.Files {
		if filter != nil && !filter(file) {
			continue
		}
		docs = append(docs, batch.Document{
			Path: file.Path,
			Name: file.RelPath,
			Root: file.Root,
			Bind: p.Bind,
		})
	}
	return docs
}

// defaultExcludedDirs are skipped below the project directory when the
// default items are collected.
var defaultExcludedDirs = map[string]bool{"bin": true, "obj": true}

// collectFiles applies the manifest's item rules and the ignore matcher and
// returns absolute paths in sorted order.
func collectFiles(m *Manifest, ign *ignore.Matcher, exts map[string]bool) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	add := func(file string) {
		file = filepath.Clean(file)
		if !seen[file] && exts[normalizeExtension(filepath.Ext(file))] {
			seen[file] = true
			files = append(files, file)
		}
	}

	if m.DefaultItems {
		err := walkSources(m.Dir, m, ign, true, func(file string) {
			add(file)
		})
		if err != nil {
			return nil, err
		}
	}

	for _, item := range m.Includes {
		pattern := absPattern(m.Dir, item)
		if !ignore.HasGlob(pattern) {
			add(filepath.FromSlash(pattern))
			continue
		}
		err := walkSources(filepath.FromSlash(globBase(pattern)), m, ign, false, func(file string) {
			if ignore.MatchGlob(pattern, filepath.ToSlash(file)) {
				add(file)
			}
		})
		if err != nil {
			return nil, err
		}
	}

	removes := make([]string, 0, len(m.Removes))
	for _, item := range m.Removes {
		removes = append(removes, absPattern(m.Dir, item))
	}

	kept := files[:0]
	for _, file := range files {
		if matchesAny(removes, filepath.ToSlash(file)) {
			continue
		}
		if rel, ok := inside(m.Dir, file); ok && ign.Match(rel, false) {
			continue
		}
		kept = append(kept, file)
	}
	sort.Strings(kept)
	return kept, nil
}

// walkSources calls fn for every regular file below root. Hidden and
// version control directories are skipped, as are directories the ignore
// matcher excludes. A missing root yields nothing, like an msbuild glob
// that matches no file.
func walkSources(root string, m *Manifest, ign *ignore.Matcher, defaults bool, fn func(string)) error {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(root, func(file string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			if entry.Type().IsRegular() {
				fn(file)
			}
			return nil
		}
		if file == root {
			return nil
		}

		name := entry.Name()
		if strings.HasPrefix(name, ".") || name == "node_modules" {
			return filepath.SkipDir
		}
		if defaults && filepath.Dir(file) == m.Dir && defaultExcludedDirs[strings.ToLower(name)] {
			return filepath.SkipDir
		}
		if rel, ok := inside(m.Dir, file); ok && ign.Match(rel, true) {
			return filepath.SkipDir
		}
		return nil
	})
}

// absPattern anchors a manifest item at dir unless it is already absolute.
func absPattern(dir, item string) string {
	if filepath.IsAbs(filepath.FromSlash(item)) {
		return path.Clean(item)
	}
	return path.Join(filepath.ToSlash(dir), item)
}

// globBase returns the directory part of pattern before the first segment
// holding a glob.
func globBase(pattern string) string {
	segments := strings.Split(pattern, "/")
	for i, segment := range segments {
		if ignore.HasGlob(segment) {
			base := strings.Join(segments[:i], "/")
			if base == "" {
				return "/"
			}
			return base
		}
	}
	return path.Dir(pattern)
}

func matchesAny(patterns []string, file string) bool {
	for _, pattern := range patterns {
		if ignore.MatchGlob(pattern, file) {
			return true
		}
	}
	return false
}

// inside returns file relative to dir when file lies below dir.
func inside(dir, file string) (string, bool) {
	rel, err := filepath.Rel(dir, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func relPath(dir, file string) string {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}

func normalizeExtension(extension string) string {
	extension = strings.ToLower(strings.TrimSpace(extension))
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return extension
}

type parseResult struct {
	source      []byte
	root        *syntax.Node
	diagnostics csharp.Diagnostics
	err         error
}

func parseFiles(paths []string, workers int, parser lang.Parser) []parseResult {
	if len(paths) == 0 {
		return nil
	}

	results := make([]parseResult, len(paths))
	taskCh := make(chan int, len(paths))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range taskCh {
				results[idx] = parseFile(paths[idx], parser)
			}
		}()
	}

	for i := range paths {
		taskCh <- i
	}
	close(taskCh)
	wg.Wait()
	return results
}

func parseFile(file string, parser lang.Parser) parseResult {
	source, err := os.ReadFile(file)
	if err != nil {
		return parseResult{err: err}
	}
	if dp, ok := parser.(diagnosingParser); ok {
		root, diagnostics, err := dp.ParseWithDiagnostics(file, source)
		return parseResult{source: source, root: root, diagnostics: diagnostics, err: err}
	}
	root, err := parser.Parse(file, source)
	return parseResult{source: source, root: root, err: err}
}

func parseWorkerCount(requested, taskCount int) int {
	if taskCount <= 0 {
		return 0
	}
	if requested > 0 {
		return min(requested, taskCount)
	}

	if raw := strings.TrimSpace(os.Getenv(WorkersEnv)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return min(parsed, taskCount)
		}
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	return min(workers, taskCount)
}
