package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/odvcencio/tileref/pkg/project"
)

func isTerminalFile(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// promptManifest asks for a project path until an existing manifest is
// entered. Ctrl-C and end of input give up.
func promptManifest(out io.Writer) (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "project (.csproj)> ",
		Stdout:          out,
		HistoryLimit:    -1,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return "", fmt.Errorf("start prompt: %w", err)
	}
	defer func() { _ = rl.Close() }()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			return "", exitCodeError{code: 130, err: errNoProject}
		}
		if errors.Is(err, io.EOF) {
			return "", errNoProject
		}
		if err != nil {
			return "", err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		manifest, err := project.ResolveManifest(line)
		if err == nil {
			return manifest, nil
		}
		fmt.Fprintln(out, err)
	}
}
