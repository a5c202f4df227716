package rewrite

import (
	"strings"

	"github.com/odvcencio/tileref/pkg/syntax"
)

// IsTargetType reports whether n is an expression of the target type or
// type syntax naming it. The static type is consulted first and the symbol
// only when no type is known. Unresolved nodes never match.
func (r *Rewriter) IsTargetType(n *syntax.Node, oracle Oracle) bool {
	if n == nil || oracle == nil {
		return false
	}
	if typ, ok := oracle.TypeOf(n); ok {
		return typ == r.cfg.TargetType
	}
	if sym, ok := oracle.SymbolOf(n); ok {
		return sym == r.cfg.TargetType
	}
	return false
}

func isNull(n *syntax.Node) bool {
	return n != nil && n.Kind() == syntax.KindNullLiteral
}

func isRef(n *syntax.Node) bool {
	return n != nil && n.Kind() == syntax.KindRefExpression
}

func isConstruction(n *syntax.Node) bool {
	return n != nil && n.Kind() == syntax.KindObjectCreation
}

func isImplicitType(n *syntax.Node) bool {
	return n.Grammar() == "implicit_type" || n.Grammar() == "identifier" && n.Text() == "var"
}

// operands splits a binary or assignment node into left, operator and right.
func operands(n *syntax.Node) (left *syntax.Node, op string, right *syntax.Node, ok bool) {
	if n.ChildCount() != 3 {
		return nil, "", nil, false
	}
	return n.Child(0), strings.TrimSpace(n.Child(1).Text()), n.Child(2), true
}

// isTwoIndexAccess matches element accesses like tiles[x, y].
func isTwoIndexAccess(n *syntax.Node) bool {
	if n == nil || n.Kind() != syntax.KindElementAccess {
		return false
	}
	args := n.ChildByGrammar("bracketed_argument_list")
	return args != nil && len(args.ChildrenByGrammar("argument")) == 2
}

// hasExcludedModifier reports whether a local declaration carries a
// modifier that rules out ref locals.
func hasExcludedModifier(stmt *syntax.Node) bool {
	for _, child := range stmt.Children() {
		if child.Kind() == syntax.KindVariableDeclaration {
			return false
		}
		switch strings.TrimSpace(child.Text()) {
		case "using", "const", "await":
			return true
		}
	}
	return false
}
