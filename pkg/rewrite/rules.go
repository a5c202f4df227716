package rewrite

import (
	"strings"

	"github.com/odvcencio/tileref/pkg/syntax"
)

// declaration turns "T a = x, b;" into "ref T a = ref x, b = ref T.Dummy;".
// It reports false when the statement is not a declaration of the target
// type or is already in ref form.
func (r *Rewriter) declaration(stmt *syntax.Node, oracle Oracle) (*syntax.Node, bool) {
	vdIdx := stmt.ChildIndex(syntax.KindVariableDeclaration)
	if vdIdx < 0 || hasExcludedModifier(stmt) {
		return nil, false
	}
	vd := stmt.Child(vdIdx)
	typ := vd.Child(0)
	if typ == nil || typ.Kind() == syntax.KindRefType || !r.IsTargetType(typ, oracle) {
		return nil, false
	}

	refLeading := typ.LeadingTrivia()
	if vdIdx > 0 {
		refLeading = gap(refLeading, " ")
	}
	children := []*syntax.Node{
		syntax.NewNode(syntax.KindRefType, "ref_type", syntax.NoSpan,
			refToken(refLeading),
			typ.WithLeadingTrivia(" "),
		),
	}

	sentinelType := typ.Detach().WithoutTrivia()
	if isImplicitType(typ) {
		sentinelType = r.qualifiedType()
	}

	for _, child := range vd.Children()[1:] {
		switch {
		case child.Kind() == syntax.KindDeclarator:
			children = append(children, r.declarator(child.WithLeadingTrivia(gap(child.LeadingTrivia(), " ")), sentinelType))
		case child.IsToken() && child.TokenText() == ",":
			children = append(children, child.WithLeadingTrivia(gap(child.LeadingTrivia(), "")))
		default:
			children = append(children, child)
		}
	}
	return stmt.WithChild(vdIdx, vd.WithChildren(children...)), true
}

// declarator binds one declared name by reference: initializer values are
// wrapped in ref, null or missing initializers become the sentinel.
func (r *Rewriter) declarator(d *syntax.Node, sentinelType *syntax.Node) *syntax.Node {
	initIdx := d.ChildIndex(syntax.KindInitializer)
	if initIdx < 0 {
		init := syntax.NewNode(syntax.KindInitializer, "equals_value_clause", syntax.NoSpan,
			syntax.NewToken(syntax.KindToken, "=", " ", "=", "", syntax.NoSpan),
			r.sentinel(sentinelType.Detach(), " "),
		)
		return d.WithChildren(append(d.Children(), init)...)
	}

	init := d.Child(initIdx)
	eq := init.Child(0)
	value := init.Child(init.ChildCount() - 1)
	var bound *syntax.Node
	switch {
	case isNull(value):
		bound = r.sentinel(sentinelType.Detach(), gap(value.LeadingTrivia(), " ")).WithTrailingTrivia(value.TrailingTrivia())
	case isRef(value):
		bound = value.WithLeadingTrivia(gap(value.LeadingTrivia(), " "))
	default:
		bound = wrapRef(value, gap(value.LeadingTrivia(), " "))
	}

	parts := init.Children()
	parts[0] = eq.WithLeadingTrivia(gap(eq.LeadingTrivia(), " "))
	parts[len(parts)-1] = bound
	return d.WithChild(initIdx, init.WithChildren(parts...))
}

// assignment wraps the right side of "target = value" in ref. The second
// result reports that the left side is a two-index element access and the
// assignment must be flagged for review. Assignments already carrying the
// review marker are left alone.
func (r *Rewriter) assignment(n *syntax.Node, oracle Oracle) (out *syntax.Node, review, ok bool) {
	left, op, right, ok := operands(n)
	if !ok || op != "=" || r.markedForReview(n) || !r.IsTargetType(left, oracle) {
		return nil, false, false
	}
	if isConstruction(right) || isRef(right) {
		return nil, false, false
	}

	var bound *syntax.Node
	if isNull(right) {
		bound = r.sentinel(r.qualifiedType(), right.LeadingTrivia()).WithTrailingTrivia(right.TrailingTrivia())
	} else {
		bound = wrapRef(right, right.LeadingTrivia())
	}
	return n.WithChild(2, bound), isTwoIndexAccess(left), true
}

// nullCheck folds "target == null" to false and "target != null" to true.
func (r *Rewriter) nullCheck(n *syntax.Node, oracle Oracle) (*syntax.Node, bool) {
	left, op, right, ok := operands(n)
	if !ok || !isNull(right) {
		return nil, false
	}
	var value string
	switch op {
	case "==":
		value = "false"
	case "!=":
		value = "true"
	default:
		return nil, false
	}
	if !r.IsTargetType(left, oracle) {
		return nil, false
	}
	return syntax.NewToken(syntax.KindToken, "boolean_literal", n.LeadingTrivia(), value, n.TrailingTrivia(), syntax.NoSpan), true
}

// disable comments a statement out: it becomes an empty statement whose
// leading trivia holds the statement text and whose trailing trivia holds
// the review marker.
func (r *Rewriter) disable(stmt *syntax.Node) *syntax.Node {
	text := strings.ReplaceAll(stmt.Text(), "*/", "* /")
	leading := stmt.LeadingTrivia() + "/* " + text + " */"
	trailing := " " + r.markerComment() + stmt.TrailingTrivia()
	return syntax.NewNode(syntax.KindStatement, "empty_statement", syntax.NoSpan,
		syntax.NewToken(syntax.KindToken, ";", leading, ";", trailing, syntax.NoSpan),
	)
}

// markForReview leaves an assignment as written and puts the review marker
// in front of it.
func (r *Rewriter) markForReview(n *syntax.Node) *syntax.Node {
	return n.WithLeadingTrivia(n.LeadingTrivia() + r.markerComment() + " ")
}

func (r *Rewriter) markedForReview(n *syntax.Node) bool {
	return strings.Contains(n.LeadingTrivia(), r.markerComment())
}

func (r *Rewriter) markerComment() string {
	return "/* " + r.cfg.ReviewMarker + " */"
}

// qualifiedType names the target so that it resolves in any file, whatever
// its using directives, aliases or shadowing types.
func (r *Rewriter) qualifiedType() *syntax.Node {
	return syntax.Token("alias_qualified_name", "global::"+r.cfg.TargetType)
}

// sentinel builds "ref <typ>.<SentinelMember>".
func (r *Rewriter) sentinel(typ *syntax.Node, leading string) *syntax.Node {
	access := syntax.NewNode(syntax.KindOther, "member_access_expression", syntax.NoSpan,
		typ.WithoutTrivia(),
		syntax.Token(".", "."),
		syntax.Token("identifier", r.cfg.SentinelMember),
	)
	return wrapRef(access, leading)
}

func wrapRef(value *syntax.Node, leading string) *syntax.Node {
	return syntax.NewNode(syntax.KindRefExpression, "ref_expression", syntax.NoSpan,
		refToken(leading),
		value.WithLeadingTrivia(" "),
	)
}

func refToken(leading string) *syntax.Node {
	return syntax.NewToken(syntax.KindToken, "ref", leading, "ref", "", syntax.NoSpan)
}

// gap keeps trivia that carries comments or directives and replaces
// whitespace-only trivia with canon.
func gap(trivia, canon string) string {
	if strings.TrimSpace(trivia) == "" {
		return canon
	}
	return trivia
}
