package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/odvcencio/tileref/internal/config"
	"github.com/odvcencio/tileref/pkg/batch"
	"github.com/odvcencio/tileref/pkg/project"
	"github.com/odvcencio/tileref/pkg/rewrite"
)

// session holds what every run against one project needs.
type session struct {
	manifest string
	cfg      *config.Config
	logger   *slog.Logger
	rewriter *rewrite.Rewriter
	stdout   io.Writer
	stderr   io.Writer
}

func newSession(cmd *cobra.Command, args []string) (*session, error) {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	manifest, err := resolveProject(cmd, arg)
	if err != nil {
		return nil, err
	}

	configPath, _ := cmd.Flags().GetString("config")
	dirs := []string{filepath.Dir(manifest)}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	cfg, err := config.Load(configPath, dirs, cmd.Flags())
	if err != nil {
		return nil, err
	}
	rw, err := rewrite.New(cfg.Rewrite())
	if err != nil {
		return nil, err
	}

	s := &session{
		manifest: manifest,
		cfg:      cfg,
		logger:   cfg.Logger(cmd.ErrOrStderr()),
		rewriter: rw,
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
	}
	if cfg.File != "" {
		s.logger.Debug("using config file", "path", cfg.File)
	}
	return s, nil
}

// resolveProject finds the manifest named by arg, or in the working
// directory when arg is empty. On a terminal the user is asked until an
// existing project is given.
func resolveProject(cmd *cobra.Command, arg string) (string, error) {
	if arg == "" {
		arg = "."
	}
	manifest, err := project.ResolveManifest(arg)
	if err == nil {
		return manifest, nil
	}
	if !isTerminal(cmd) {
		return "", err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), err)
	return promptManifest(cmd.ErrOrStderr())
}

// run loads the project and rewrites the files filter accepts.
func (s *session) run(filter func(*project.File) bool) (batch.Report, error) {
	proj, err := project.Load(s.manifest, project.Options{
		Exclude:       s.cfg.Exclude,
		TargetType:    s.cfg.TargetType,
		ExternalTypes: s.cfg.ExternalTypes,
		Logger:        s.logger,
	})
	if err != nil {
		return batch.Report{}, err
	}
	docs := proj.Documents(filter)

	var writer batch.Writer = batch.FileWriter{}
	if s.cfg.DryRun {
		out := s.stdout
		if s.cfg.JSON {
			out = s.stderr
		}
		writer = &batch.DiffWriter{Out: out, Root: proj.Manifest.Dir}
	}

	runner := &batch.Runner{
		Rewriter: s.rewriter,
		Writer:   writer,
		Workers:  s.cfg.Workers,
		Logger:   s.logger,
	}
	if s.cfg.Progress && !s.cfg.JSON && len(docs) > 0 {
		bar := startProgress(s.stderr, "rewriting "+filepath.Base(s.manifest), len(docs))
		runner.Progress = bar
		defer bar.Stop()
	}
	return runner.Run(docs)
}

type runOutput struct {
	Manifest string       `json:"manifest"`
	DryRun   bool         `json:"dry_run"`
	Report   batch.Report `json:"report"`
}

func (s *session) print(report batch.Report) error {
	if s.cfg.JSON {
		return emitJSON(s.stdout, runOutput{Manifest: s.manifest, DryRun: s.cfg.DryRun, Report: report})
	}
	printReport(s.stdout, report, s.cfg.DryRun)
	return nil
}

func runRewrite(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	report, err := s.run(nil)
	if err != nil {
		// Files written before the failure stay written; say which.
		if report.FilesChanged > 0 {
			_ = s.print(report)
		}
		return err
	}
	return s.print(report)
}

var ruleLabels = []struct {
	rule  string
	label string
}{
	{rewrite.RuleDeclaration, "ref locals"},
	{rewrite.RuleAssignment, "ref re-assignments"},
	{rewrite.RuleNullCheck, "folded null checks"},
	{rewrite.RuleReview, "flagged for review"},
}

func printReport(w io.Writer, report batch.Report, dryRun bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Rule", "Changes"})
	for _, r := range ruleLabels {
		t.AppendRow(table.Row{r.label, report.Rules[r.rule]})
	}
	verb := "files changed"
	if dryRun {
		verb = "files to change"
	}
	t.AppendFooter(table.Row{verb, fmt.Sprintf("%d / %d", report.FilesChanged, report.FilesProcessed)})
	t.Render()

	for _, file := range report.Files {
		for _, change := range file.Changes {
			if change.Rule == rewrite.RuleReview {
				fmt.Fprintf(w, "%s:%d:%d: needs manual review\n", file.Path, change.Line, change.Column)
			}
		}
	}
}

var errNoProject = errors.New("no project given")
