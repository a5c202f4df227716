package batch

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/odvcencio/tileref/internal/testutil"
	"github.com/odvcencio/tileref/pkg/lang/csharp"
	"github.com/odvcencio/tileref/pkg/rewrite"
	"github.com/odvcencio/tileref/pkg/syntax"
)

type textOracle map[string]string

func (o textOracle) TypeOf(n *syntax.Node) (string, bool) {
	typ, ok := o[n.Text()]
	return typ, ok
}

func (o textOracle) SymbolOf(n *syntax.Node) (string, bool) {
	typ, ok := o[n.Text()]
	return typ, ok
}

var tileOracle = textOracle{"tile": "Terraria.Tile", "Tile": "Terraria.Tile"}

const (
	changedSource   = "class A\n{\n\tvoid M()\n\t{\n\t\tTile tile = null;\n\t\tif (tile != null) { }\n\t}\n}\n"
	changedExpected = "class A\n{\n\tvoid M()\n\t{\n\t\tref Tile tile = ref Tile.Dummy;\n\t\tif (true) { }\n\t}\n}\n"
	quietSource     = "class B\n{\n\tint n;\n}\n"
)

func document(t *testing.T, path, src string) Document {
	t.Helper()
	root, err := csharp.NewParser().Parse(path, []byte(src))
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return Document{
		Path: path,
		Root: root,
		Bind: func(*syntax.Node) rewrite.Oracle { return tileOracle },
	}
}

func newRunner(t *testing.T, w Writer, workers int) *Runner {
	t.Helper()
	rw, err := rewrite.New(rewrite.DefaultConfig())
	if err != nil {
		t.Fatalf("rewrite.New: %v", err)
	}
	return &Runner{Rewriter: rw, Writer: w, Progress: &Counter{}, Workers: workers, Logger: testutil.NewTestLogger(t)}
}

func TestPartitionRoundRobin(t *testing.T) {
	docs := make([]Document, 5)
	for i := range docs {
		docs[i].Path = string(rune('a' + i))
	}

	parts := Partition(docs, 2)
	if len(parts) != 2 {
		t.Fatalf("partitions = %d, want 2", len(parts))
	}
	var got []string
	for _, part := range parts {
		var names []string
		for _, doc := range part {
			names = append(names, doc.Path)
		}
		got = append(got, strings.Join(names, ""))
	}
	if got[0] != "ace" || got[1] != "bd" {
		t.Fatalf("partitions = %v", got)
	}

	if n := len(Partition(docs, 10)); n != 5 {
		t.Fatalf("more workers than docs gave %d partitions", n)
	}
	if n := len(Partition(docs, 0)); n != 1 {
		t.Fatalf("zero workers gave %d partitions", n)
	}
	if Partition(nil, 4) != nil {
		t.Fatal("no docs should give no partitions")
	}
}

func TestRunWritesOnlyChangedFiles(t *testing.T) {
	docs := []Document{
		document(t, "a.cs", changedSource),
		document(t, "b.cs", quietSource),
		document(t, "c.cs", changedSource),
	}
	w := &MemoryWriter{}
	r := newRunner(t, w, 2)

	report, err := r.Run(docs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(w.Paths(), ","); got != "a.cs,c.cs" {
		t.Fatalf("written = %s", got)
	}
	content, _ := w.File("a.cs")
	if string(content) != changedExpected {
		t.Fatalf("a.cs = %q", content)
	}
	if got := r.Progress.(*Counter).Value(); got != 3 {
		t.Fatalf("progress = %d, want 3", got)
	}

	if report.FilesProcessed != 3 || report.FilesChanged != 2 {
		t.Fatalf("report = %+v", report)
	}
	if report.Rules[rewrite.RuleDeclaration] != 2 || report.Rules[rewrite.RuleNullCheck] != 2 {
		t.Fatalf("rules = %v", report.Rules)
	}
	if len(report.Files) != 2 || report.Files[0].Path != "a.cs" {
		t.Fatalf("files = %+v", report.Files)
	}
	first := report.Files[0].Changes[0]
	if first.Rule != rewrite.RuleDeclaration || first.Line != 5 || first.Column != 3 {
		t.Fatalf("first change = %+v", first)
	}
}

func TestRunMissingRootDoesNotCancelSiblings(t *testing.T) {
	docs := []Document{
		{Path: "broken.cs"},
		document(t, "ok.cs", changedSource),
	}
	w := &MemoryWriter{}
	report, err := newRunner(t, w, 2).Run(docs)
	if !errors.Is(err, ErrNoSyntaxRoot) {
		t.Fatalf("err = %v, want ErrNoSyntaxRoot", err)
	}
	if _, ok := w.File("ok.cs"); !ok {
		t.Fatal("the healthy partition should still write its file")
	}
	if report.FilesChanged != 1 {
		t.Fatalf("report = %+v", report)
	}
}

type failingWriter struct{}

func (failingWriter) WriteFile(string, []byte) error { return os.ErrPermission }

func TestRunReturnsWriteErrors(t *testing.T) {
	_, err := newRunner(t, failingWriter{}, 1).Run([]Document{document(t, "a.cs", changedSource)})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("err = %v, want a wrapped permission error", err)
	}
}

func TestRunWithoutBindLeavesFilesAlone(t *testing.T) {
	doc := document(t, "a.cs", changedSource)
	doc.Bind = nil
	w := &MemoryWriter{}
	report, err := newRunner(t, w, 1).Run([]Document{doc})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(w.Paths()) != 0 || report.FilesChanged != 0 {
		t.Fatalf("unbound document was rewritten: %+v", report)
	}
}

func TestFileWriterKeepsMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not portable")
	}
	path := filepath.Join(t.TempDir(), "a.cs")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := (FileWriter{}).WriteFile(path, []byte("new")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v", info.Mode().Perm())
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Fatalf("content = %q", data)
	}
}

func TestDiffWriterLeavesDiskAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "src", "a.cs")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(changedSource), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	w := &DiffWriter{Out: &out, Root: dir}
	if err := w.WriteFile(path, []byte(changedExpected)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	diff := out.String()
	for _, want := range []string{
		"--- a/src/a.cs",
		"+++ b/src/a.cs",
		"-\t\tTile tile = null;",
		"+\t\tref Tile tile = ref Tile.Dummy;",
	} {
		if !strings.Contains(diff, want) {
			t.Errorf("diff lacks %q:\n%s", want, diff)
		}
	}
	data, _ := os.ReadFile(path)
	if string(data) != changedSource {
		t.Fatal("dry run modified the file")
	}
}

func TestCounterConcurrentAdds(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add(1)
			}
		}()
	}
	wg.Wait()
	c.Add(-5)
	if c.Value() != 800 {
		t.Fatalf("counter = %d, want 800", c.Value())
	}
}
