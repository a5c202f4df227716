package rewrite

import (
	"fmt"

	"github.com/odvcencio/tileref/pkg/syntax"
)

// Rule names reported in Change.
const (
	RuleDeclaration = "declaration"
	RuleAssignment  = "assignment"
	RuleNullCheck   = "null-check"
	RuleReview      = "review"
)

// Change records one rule application. Span is the source span of the node
// the rule replaced.
type Change struct {
	Rule    string      `json:"rule"`
	Span    syntax.Span `json:"span"`
	Flagged bool        `json:"flagged,omitempty"`
}

type Result struct {
	Root    *syntax.Node
	Changed bool
	Changes []Change
}

// Rewrite applies every rule to the tree rooted at root. The original tree
// is never modified; unchanged subtrees are shared with the result. Changed
// is false exactly when the result is structurally equal to root.
func (r *Rewriter) Rewrite(root *syntax.Node, oracle Oracle) Result {
	if root == nil {
		return Result{}
	}
	w := &walker{rw: r, oracle: oracle}
	out, _ := w.visit(root)
	return Result{
		Root:    out,
		Changed: !syntax.Equivalent(root, out),
		Changes: w.changes,
	}
}

type walker struct {
	rw     *Rewriter
	oracle Oracle
	// disablable is set while the nearest enclosing statement is one the
	// review policy may comment out whole.
	disablable bool
	changes    []Change
}

// visit rewrites n top down. A replaced node is visited again through its
// children, so rules see the replacement rather than the stale original.
// The flag asks the nearest enclosing statement to disable itself.
func (w *walker) visit(n *syntax.Node) (*syntax.Node, bool) {
	if n.Kind().IsStatement() || opensExpressionBody(n) {
		saved := w.disablable
		w.disablable = n.Kind() == syntax.KindExpressionStatement || n.Kind() == syntax.KindLocalDeclaration
		defer func() { w.disablable = saved }()
	}

	switch n.Kind() {
	case syntax.KindToken, syntax.KindNullLiteral:
		return n, false

	case syntax.KindLocalDeclaration:
		orig := n
		if out, ok := w.rw.declaration(n, w.oracle); ok {
			w.record(RuleDeclaration, orig, false)
			n = out
		}
		out, flagged := w.children(n)
		return w.settle(orig, out, flagged), false

	case syntax.KindExpressionStatement:
		out, flagged := w.children(n)
		return w.settle(n, out, flagged), false

	case syntax.KindStatement:
		return w.children(n)

	case syntax.KindAssignment:
		out, review, ok := w.rw.assignment(n, w.oracle)
		switch {
		case !ok:
			return w.children(n)
		case review && !w.disablable:
			// Nothing to comment out without taking unrelated code along:
			// keep the assignment as written and mark it.
			w.record(RuleReview, n, true)
			kept, _ := w.children(n)
			return w.rw.markForReview(kept), false
		}
		w.record(RuleAssignment, n, review)
		out, flagged := w.children(out)
		return out, review || flagged

	case syntax.KindBinary:
		if out, ok := w.rw.nullCheck(n, w.oracle); ok {
			w.record(RuleNullCheck, n, false)
			return w.visit(out)
		}
		return w.children(n)

	case syntax.KindCompilationUnit, syntax.KindVariableDeclaration, syntax.KindDeclarator,
		syntax.KindInitializer, syntax.KindRefType, syntax.KindRefExpression,
		syntax.KindObjectCreation, syntax.KindElementAccess, syntax.KindOther:
		return w.children(n)

	default:
		panic(fmt.Sprintf("rewrite: unhandled node kind %s", n.Kind()))
	}
}

// children visits every child and rebuilds n only if one of them changed.
func (w *walker) children(n *syntax.Node) (*syntax.Node, bool) {
	var rebuilt []*syntax.Node
	flagged := false
	for i := 0; i < n.ChildCount(); i++ {
		child := n.Child(i)
		out, f := w.visit(child)
		flagged = flagged || f
		if out != child && rebuilt == nil {
			rebuilt = n.Children()
		}
		if rebuilt != nil {
			rebuilt[i] = out
		}
	}
	if rebuilt == nil {
		return n, flagged
	}
	return n.WithChildren(rebuilt...), flagged
}

// opensExpressionBody reports nodes whose expression body stands in for a
// statement of its own.
func opensExpressionBody(n *syntax.Node) bool {
	switch n.Grammar() {
	case "arrow_expression_clause", "lambda_expression", "anonymous_method_expression":
		return true
	}
	return false
}

// settle disables a statement that contains a flagged assignment.
func (w *walker) settle(orig, stmt *syntax.Node, flagged bool) *syntax.Node {
	if !flagged {
		return stmt
	}
	w.record(RuleReview, orig, true)
	return w.rw.disable(stmt)
}

func (w *walker) record(rule string, n *syntax.Node, flagged bool) {
	w.changes = append(w.changes, Change{Rule: rule, Span: n.Span(), Flagged: flagged})
}
