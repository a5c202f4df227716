package csharp

import (
	"strings"
	"testing"

	"github.com/odvcencio/tileref/pkg/syntax"
)

const sample = `using Terraria;

namespace Demo
{
    // comment before class
    public class Worker
    {
        public void Run(int i, int j)
        {
            Tile tile = Main.tile[i, j]; /* trailing */
            Tile other;
            other = tile;
#pragma warning disable CS0219
            if (tile == null) return;
            Main.tile[i, j] = new Tile();
        }
    }
}
`

func TestParseRoundTrip(t *testing.T) {
	inputs := map[string]string{
		"sample":  sample,
		"crlf":    strings.ReplaceAll(sample, "\n", "\r\n"),
		"empty":   "",
		"comment": "// only a comment\n",
		"broken":  "class C { void M() { Tile t = ; } ",
	}
	parser := NewParser()
	for name, src := range inputs {
		root, err := parser.Parse(name+".cs", []byte(src))
		if err != nil {
			t.Fatalf("%s: Parse returned error: %v", name, err)
		}
		if got := root.FullText(); got != src {
			t.Fatalf("%s: round trip mismatch\n got: %q\nwant: %q", name, got, src)
		}
		if root.Kind() != syntax.KindCompilationUnit {
			t.Fatalf("%s: root kind = %s", name, root.Kind())
		}
	}
}

func TestParseReportsDiagnostics(t *testing.T) {
	parser := NewParser()
	_, diag, err := parser.ParseWithDiagnostics("ok.cs", []byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !diag.Clean() {
		t.Fatalf("expected clean parse, got %+v", diag)
	}

	_, diag, err = parser.ParseWithDiagnostics("broken.cs", []byte("class C { void M() { Tile t = ; } "))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diag.Clean() {
		t.Fatal("expected diagnostics for broken source")
	}
}

func TestParseMapsKinds(t *testing.T) {
	root, err := NewParser().Parse("sample.cs", []byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	counts := map[syntax.Kind]int{}
	syntax.Inspect(root, func(n *syntax.Node) bool {
		counts[n.Kind()]++
		return true
	})
	for _, kind := range []syntax.Kind{
		syntax.KindLocalDeclaration,
		syntax.KindVariableDeclaration,
		syntax.KindDeclarator,
		syntax.KindInitializer,
		syntax.KindAssignment,
		syntax.KindBinary,
		syntax.KindNullLiteral,
		syntax.KindObjectCreation,
		syntax.KindElementAccess,
		syntax.KindExpressionStatement,
		syntax.KindStatement,
	} {
		if counts[kind] == 0 {
			t.Errorf("no %s node in converted tree", kind)
		}
	}
	if counts[syntax.KindLocalDeclaration] != 2 {
		t.Errorf("local declarations = %d, want 2", counts[syntax.KindLocalDeclaration])
	}
}

func TestParseGroupsInitializer(t *testing.T) {
	root, err := NewParser().Parse("init.cs", []byte("class C { void M() { int a = 1, b; } }"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var declarators []*syntax.Node
	syntax.Inspect(root, func(n *syntax.Node) bool {
		if n.Kind() == syntax.KindDeclarator {
			declarators = append(declarators, n)
		}
		return true
	})
	if len(declarators) != 2 {
		t.Fatalf("declarators = %d, want 2", len(declarators))
	}

	first := declarators[0]
	idx := first.ChildIndex(syntax.KindInitializer)
	if idx < 0 {
		t.Fatalf("first declarator has no initializer: %s", first)
	}
	init := first.Child(idx)
	if got := init.Child(0).TokenText(); got != "=" {
		t.Fatalf("initializer starts with %q, want =", got)
	}
	if got := init.Text(); got != "= 1" {
		t.Fatalf("initializer text = %q", got)
	}
	if declarators[1].ChildIndex(syntax.KindInitializer) >= 0 {
		t.Fatal("second declarator should have no initializer")
	}
}

func TestParseKeepsCommentsAsTrivia(t *testing.T) {
	src := "class C {\n  // note\n  void M() { }\n}\n"
	root, err := NewParser().Parse("trivia.cs", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	found := false
	syntax.Inspect(root, func(n *syntax.Node) bool {
		if n.IsToken() && strings.Contains(n.LeadingTrivia(), "// note") {
			found = true
			if n.TokenText() != "void" {
				t.Errorf("comment attached to %q, want void", n.TokenText())
			}
		}
		return true
	})
	if !found {
		t.Fatal("comment not kept as leading trivia")
	}
}
