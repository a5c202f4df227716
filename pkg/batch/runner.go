// Package batch runs the rewriter over many files in parallel and hands the
// changed ones to a Writer.
package batch

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/tileref/pkg/rewrite"
	"github.com/odvcencio/tileref/pkg/syntax"
)

var ErrNoSyntaxRoot = errors.New("document has no syntax tree")

// Document is one file scheduled for rewriting.
type Document struct {
	Path string
	// Name is the path shown in reports; Path is used when empty.
	Name string
	Root *syntax.Node
	// Bind returns the semantic answers for Root. A nil Bind answers nothing,
	// which leaves the file unchanged.
	Bind func(root *syntax.Node) rewrite.Oracle
}

func (d Document) name() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Path
}

// Runner rewrites documents on a fixed number of workers.
type Runner struct {
	Rewriter *rewrite.Rewriter
	Writer   Writer
	Progress Progress
	Workers  int
	Logger   *slog.Logger
}

// Partition deals docs round-robin into at most workers slices.
func Partition(docs []Document, workers int) [][]Document {
	if len(docs) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(docs) {
		workers = len(docs)
	}
	parts := make([][]Document, workers)
	for i, doc := range docs {
		parts[i%workers] = append(parts[i%workers], doc)
	}
	return parts
}

// Run processes every document and writes the changed ones. Each partition
// runs on its own goroutine and handles its files in order. The first error
// is returned after all workers finish; a failing worker does not stop the
// others and files already written stay written.
func (r *Runner) Run(docs []Document) (Report, error) {
	if r.Rewriter == nil {
		return Report{}, errors.New("runner has no rewriter")
	}
	if r.Writer == nil {
		return Report{}, errors.New("runner has no writer")
	}

	parts := Partition(docs, r.Workers)
	reports := make([]Report, len(parts))
	var g errgroup.Group
	for i, part := range parts {
		g.Go(func() error {
			rep, err := r.runPartition(part)
			reports[i] = rep
			return err
		})
	}
	err := g.Wait()
	return mergeReports(reports), err
}

func (r *Runner) runPartition(docs []Document) (Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	progress := r.Progress
	if progress == nil {
		progress = noProgress{}
	}

	report := Report{Rules: map[string]int{}}
	for _, doc := range docs {
		if doc.Root == nil {
			return report, fmt.Errorf("%s: %w", doc.name(), ErrNoSyntaxRoot)
		}

		var oracle rewrite.Oracle = emptyOracle{}
		if doc.Bind != nil {
			oracle = doc.Bind(doc.Root)
		}
		res := r.Rewriter.Rewrite(doc.Root, oracle)
		report.FilesProcessed++

		if res.Changed {
			if err := r.Writer.WriteFile(doc.Path, []byte(res.Root.FullText())); err != nil {
				return report, fmt.Errorf("write %s: %w", doc.name(), err)
			}
			report.FilesChanged++
			report.Files = append(report.Files, fileReport(doc, res.Changes))
			for _, change := range res.Changes {
				report.Rules[change.Rule]++
			}
			logger.Debug("rewrote file", "path", doc.name(), "changes", len(res.Changes))
		}
		progress.Add(1)
	}
	return report, nil
}

func fileReport(doc Document, changes []rewrite.Change) FileReport {
	lines := syntax.NewLines([]byte(doc.Root.FullText()))
	out := FileReport{Path: doc.name(), Changes: make([]ChangeReport, 0, len(changes))}
	for _, change := range changes {
		line, column := lines.Position(change.Span.Start)
		out.Changes = append(out.Changes, ChangeReport{
			Rule:    change.Rule,
			Line:    line,
			Column:  column,
			Flagged: change.Flagged,
		})
	}
	sort.SliceStable(out.Changes, func(i, j int) bool {
		if out.Changes[i].Line == out.Changes[j].Line {
			return out.Changes[i].Column < out.Changes[j].Column
		}
		return out.Changes[i].Line < out.Changes[j].Line
	})
	return out
}

type emptyOracle struct{}

func (emptyOracle) TypeOf(*syntax.Node) (string, bool)   { return "", false }
func (emptyOracle) SymbolOf(*syntax.Node) (string, bool) { return "", false }
