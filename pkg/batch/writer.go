package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
)

// Writer receives the new content of every changed file.
type Writer interface {
	WriteFile(path string, content []byte) error
}

// FileWriter overwrites files in place, keeping their permissions.
type FileWriter struct{}

func (FileWriter) WriteFile(path string, content []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, info.Mode().Perm())
}

// DiffWriter leaves files alone and prints a unified diff against the
// current disk content instead.
type DiffWriter struct {
	Out io.Writer
	// Root shortens the file labels in the diff headers.
	Root    string
	Context int

	mu sync.Mutex
}

func (w *DiffWriter) WriteFile(path string, content []byte) error {
	old, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := filepath.ToSlash(path)
	if w.Root != "" {
		if rel, err := filepath.Rel(w.Root, path); err == nil {
			name = filepath.ToSlash(rel)
		}
	}
	context := w.Context
	if context <= 0 {
		context = 3
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(old)),
		B:        difflib.SplitLines(string(content)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  context,
	})
	if err != nil {
		return fmt.Errorf("diff %s: %w", name, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = io.WriteString(w.Out, text)
	return err
}

// MemoryWriter records writes instead of touching the disk.
type MemoryWriter struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (w *MemoryWriter) WriteFile(path string, content []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files == nil {
		w.files = map[string][]byte{}
	}
	w.files[path] = append([]byte(nil), content...)
	return nil
}

// File returns what was last written to path.
func (w *MemoryWriter) File(path string) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	content, ok := w.files[path]
	return content, ok
}

// Paths lists the written paths in sorted order.
func (w *MemoryWriter) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.files))
	for path := range w.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
