package rewrite

import (
	"errors"
	"strings"
	"testing"

	"github.com/odvcencio/tileref/pkg/lang/csharp"
	"github.com/odvcencio/tileref/pkg/syntax"
)

const target = "Terraria.Tile"

// textOracle answers by node text, which is enough for single-method samples.
type textOracle struct {
	types   map[string]string
	symbols map[string]string
}

func (o textOracle) TypeOf(n *syntax.Node) (string, bool) {
	typ, ok := o.types[n.Text()]
	return typ, ok
}

func (o textOracle) SymbolOf(n *syntax.Node) (string, bool) {
	sym, ok := o.symbols[n.Text()]
	return sym, ok
}

var tileOracle = textOracle{
	types: map[string]string{
		"tile":        target,
		"tiles[x, y]": target,
		"tiles[x]":    target,
		"count":       "System.Int32",
	},
	symbols: map[string]string{
		"Tile": target,
		"var":  target,
	},
}

func method(body string) string {
	return "class C\n{\n\tvoid M()\n\t{\n\t\t" + body + "\n\t}\n}\n"
}

func newRewriter(t *testing.T) *Rewriter {
	t.Helper()
	rw, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rw
}

func parse(t *testing.T, src string) *syntax.Node {
	t.Helper()
	root, err := csharp.NewParser().Parse("test.cs", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

func rewriteBody(t *testing.T, body string, oracle Oracle) Result {
	t.Helper()
	return newRewriter(t).Rewrite(parse(t, method(body)), oracle)
}

func TestRewriteScenarios(t *testing.T) {
	marker := DefaultReviewMarker
	mark := "/* " + marker + " */"
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"declaration with call", "Tile tile = source.GetTile(x, y);", "ref Tile tile = ref source.GetTile(x, y);"},
		{"declaration with null", "Tile tile = null;", "ref Tile tile = ref Tile.Dummy;"},
		{"assignment from call", "tile = GetTile(i);", "tile = ref GetTile(i);"},
		{"assignment from constructor", "tile = new Tile();", "tile = new Tile();"},
		{"equality fold", "if (tile == null) { }", "if (false) { }"},
		{"inequality fold", "if (tile != null) { }", "if (true) { }"},
		{"two-index assignment", "tiles[x, y] = newTile;", "/* tiles[x, y] = ref newTile; */; /* " + marker + " */"},
		{"one-index assignment", "tiles[x] = newTile;", "tiles[x] = ref newTile;"},
		{"missing initializer", "Tile a, b = other;", "ref Tile a = ref Tile.Dummy, b = ref other;"},
		{"implicit type", "var t = Main.tile[i, j];", "ref var t = ref Main.tile[i, j];"},
		{"already ref declaration", "ref Tile tile = ref Main.tile[i, j];", "ref Tile tile = ref Main.tile[i, j];"},
		{"already ref assignment", "tile = ref other;", "tile = ref other;"},
		{"null assignment", "tile = null;", "tile = ref global::Terraria.Tile.Dummy;"},
		{"two-index assignment in lambda", "Action set = () => tiles[x, y] = newTile;", "Action set = () => " + mark + " tiles[x, y] = newTile;"},
		{"two-index assignment in loop condition", "while ((tiles[x, y] = Next()) != null) { tile = other; }", "while ((" + mark + " tiles[x, y] = Next()) != null) { tile = ref other; }"},
		{"compound assignment", "count += 1;", "count += 1;"},
		{"whitespace normalized", "Tile   tile  =   x;", "ref Tile tile = ref x;"},
		{"comment gap kept", "Tile /* a */ tile = x;", "ref Tile /* a */ tile = ref x;"},
		{"fold inside initializer", "bool ok = tile != null;", "bool ok = true;"},
		{"const skipped", "const int n = 1;", "const int n = 1;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := rewriteBody(t, tt.in, tileOracle)
			if got, want := res.Root.FullText(), method(tt.want); got != want {
				t.Fatalf("rewrite mismatch\n got: %q\nwant: %q", got, want)
			}
			if res.Changed != (tt.in != tt.want) {
				t.Fatalf("Changed = %v", res.Changed)
			}
		})
	}
}

func TestRewriteRecordsChanges(t *testing.T) {
	res := rewriteBody(t, "tiles[x, y] = newTile;", tileOracle)
	if len(res.Changes) != 2 {
		t.Fatalf("changes = %+v", res.Changes)
	}
	if res.Changes[0].Rule != RuleAssignment || !res.Changes[0].Flagged {
		t.Fatalf("first change = %+v", res.Changes[0])
	}
	if res.Changes[1].Rule != RuleReview {
		t.Fatalf("second change = %+v", res.Changes[1])
	}
	if !res.Changes[1].Span.Valid() {
		t.Fatal("review change should carry the original statement span")
	}
}

func TestRewriteMarksAssignmentOutsideStatement(t *testing.T) {
	res := rewriteBody(t, "Action set = () => tiles[x, y] = newTile;", tileOracle)
	if len(res.Changes) != 1 {
		t.Fatalf("changes = %+v", res.Changes)
	}
	if c := res.Changes[0]; c.Rule != RuleReview || !c.Flagged || !c.Span.Valid() {
		t.Fatalf("change = %+v", c)
	}
	if strings.Contains(res.Root.FullText(), "ref newTile") {
		t.Fatalf("marked assignment must stay as written:\n%s", res.Root.FullText())
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	body := strings.Join([]string{
		"Tile tile = null;",
		"\t\tTile a, b = Main.tile[i, j];",
		"\t\ttile = GetTile(i);",
		"\t\ttiles[x, y] = tile;",
		"\t\tif (tile == null) return;",
		"\t\tvar t = Main.tile[i, j];",
		"\t\tAction set = () => tiles[x, y] = tile;",
		"\t\twhile ((tiles[x, y] = Next()) != null) { }",
	}, "\n")
	rw := newRewriter(t)
	once := rw.Rewrite(parse(t, method(body)), tileOracle)
	if !once.Changed {
		t.Fatal("first pass should change the file")
	}
	twice := rw.Rewrite(parse(t, once.Root.FullText()), tileOracle)
	if twice.Changed {
		t.Fatalf("second pass changed the file:\n%s", twice.Root.FullText())
	}
	if len(twice.Changes) != 0 {
		t.Fatalf("second pass recorded changes: %+v", twice.Changes)
	}
}

func TestRewriteNoopSharesRoot(t *testing.T) {
	root := parse(t, method("int n = count + 1;\n\t\tConsole.WriteLine(n);"))
	res := newRewriter(t).Rewrite(root, tileOracle)
	if res.Changed {
		t.Fatal("unrelated code must not change")
	}
	if res.Root != root {
		t.Fatal("an unchanged tree must be returned by identity")
	}
}

func TestRewriteSharesUntouchedSubtrees(t *testing.T) {
	src := "using System;\n\n" + method("tile = GetTile(i);")
	root := parse(t, src)
	res := newRewriter(t).Rewrite(root, tileOracle)
	if !res.Changed {
		t.Fatal("expected a change")
	}
	if res.Root.Child(0) != root.Child(0) {
		t.Fatal("using directive should be shared with the original tree")
	}
	if res.Root == root {
		t.Fatal("root must be rebuilt")
	}
}

func TestRewriteOnlyMatchesExactTargetType(t *testing.T) {
	others := []string{"Other.Tile", "Terraria.TileData", "Terraria.SubTile", "terraria.tile"}
	for _, other := range others {
		oracle := textOracle{
			types:   map[string]string{"tile": other, "tiles[x, y]": other},
			symbols: map[string]string{"Tile": other},
		}
		body := "Tile tile = null;\n\t\ttile = GetTile(i);\n\t\tif (tile == null) { }\n\t\ttiles[x, y] = tile;"
		res := rewriteBody(t, body, oracle)
		if res.Changed {
			t.Errorf("%s: rewritten to\n%s", other, res.Root.FullText())
		}
	}
}

func TestRewriteUnresolvedIsNoop(t *testing.T) {
	body := "Tile tile = null;\n\t\ttile = GetTile(i);\n\t\tif (tile == null) { }"
	res := rewriteBody(t, body, textOracle{})
	if res.Changed {
		t.Fatal("unresolved nodes must never be rewritten")
	}
}

func TestRewriteKeepsLeadingTrivia(t *testing.T) {
	body := "// the tile under the cursor\n\t\t#pragma warning disable CS0219\n\t\tTile tile = Main.tile[i, j];"
	root := parse(t, method(body))
	res := newRewriter(t).Rewrite(root, tileOracle)

	var before, after *syntax.Node
	syntax.Inspect(root, func(n *syntax.Node) bool {
		if before == nil && n.Kind() == syntax.KindLocalDeclaration {
			before = n
		}
		return before == nil
	})
	syntax.Inspect(res.Root, func(n *syntax.Node) bool {
		if after == nil && n.Kind() == syntax.KindLocalDeclaration {
			after = n
		}
		return after == nil
	})
	if before == nil || after == nil {
		t.Fatal("declaration not found")
	}
	if after.LeadingTrivia() != before.LeadingTrivia() {
		t.Fatalf("leading trivia = %q, want %q", after.LeadingTrivia(), before.LeadingTrivia())
	}
	if !strings.HasPrefix(after.Text(), "ref Tile tile = ref ") {
		t.Fatalf("declaration = %q", after.Text())
	}
}

func TestRewriteUnknownKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an unknown node kind")
		}
	}()
	bogus := syntax.NewNode(syntax.Kind(200), "bogus", syntax.NoSpan, syntax.Token("identifier", "x"))
	root := syntax.NewNode(syntax.KindCompilationUnit, "compilation_unit", syntax.NoSpan, bogus)
	newRewriter(t).Rewrite(root, tileOracle)
}

func TestNewValidatesConfig(t *testing.T) {
	bad := []Config{
		{TargetType: "", SentinelMember: "Dummy"},
		{TargetType: "Terraria..Tile", SentinelMember: "Dummy"},
		{TargetType: "Terraria.Tile<int>", SentinelMember: "Dummy"},
		{TargetType: "Terraria.Tile", SentinelMember: "1Dummy"},
		{TargetType: "Terraria.Tile", SentinelMember: "Dummy", ReviewMarker: "end */ here"},
		{TargetType: "Terraria.Tile", SentinelMember: "Dummy", ReviewMarker: "two\nlines"},
	}
	for _, cfg := range bad {
		if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("New(%+v) = %v, want ErrInvalidConfig", cfg, err)
		}
	}

	rw, err := New(Config{TargetType: "Game.World.Cell", SentinelMember: "Empty"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if rw.Config().ReviewMarker != DefaultReviewMarker {
		t.Fatalf("review marker = %q", rw.Config().ReviewMarker)
	}
	oracle := textOracle{symbols: map[string]string{"Cell": "Game.World.Cell"}, types: map[string]string{"cell": "Game.World.Cell"}}
	res := rw.Rewrite(parse(t, method("Cell cell = null;\n\t\tcell = null;")), oracle)
	want := method("ref Cell cell = ref Cell.Empty;\n\t\tcell = ref Cell.Empty;")
	if got := res.Root.FullText(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
