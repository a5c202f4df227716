package sema

import (
	"strings"

	"github.com/odvcencio/tileref/pkg/syntax"
)

// Bind walks root once with lexical scopes and returns an oracle holding the
// static type of every expression it could resolve and the symbol of every
// piece of type syntax. idx must be finalized; Bind does not modify it, so
// files may be bound concurrently.
func Bind(idx *Index, root *syntax.Node) *Oracle {
	b := &binder{index: idx, oracle: newOracle()}
	if root == nil {
		return b.oracle
	}
	top := NewScope(ScopeFile, nil)
	walkDecls(root, declWalker{
		onType: func(decl *syntax.Node, _ string, _, inner nameContext) {
			b.ctx = inner
			b.typeBody(decl)
		},
		onGlobal: func(stmt *syntax.Node, ctx nameContext) {
			b.ctx = ctx
			b.children(stmt, top)
		},
	})
	return b.oracle
}

type binder struct {
	index  *Index
	oracle *Oracle
	ctx    nameContext
}

// typeBody binds the members of one type declaration. Nested types are
// reported separately by walkDecls.
func (b *binder) typeBody(decl *syntax.Node) {
	members := NewScope(ScopeFile, nil)
	if params := decl.ChildByGrammar("parameter_list"); params != nil {
		members = NewScope(ScopeFunction, nil)
		b.parameters(params, members)
	}
	if bases := decl.ChildByGrammar("base_list"); bases != nil {
		for _, base := range bases.Children() {
			if typeGrammars[base.Grammar()] {
				b.typeSyntax(base)
			} else {
				b.visit(base, members)
			}
		}
	}

	body := decl.ChildByGrammar("declaration_list")
	if body == nil {
		return
	}
	for _, member := range body.Children() {
		if _, nested := declKinds[member.Grammar()]; nested {
			continue
		}
		switch member.Grammar() {
		case "field_declaration", "event_field_declaration":
			if vars := member.ChildByGrammar("variable_declaration"); vars != nil {
				b.variableDeclaration(vars, NewScope(ScopeBlock, members))
			}
		case "property_declaration", "indexer_declaration", "event_declaration":
			b.property(member, members)
		case "method_declaration", "constructor_declaration", "destructor_declaration",
			"operator_declaration", "conversion_operator_declaration":
			b.method(member, members)
		default:
			b.visit(member, members)
		}
	}
}

func (b *binder) method(decl *syntax.Node, outer *Scope) {
	fs := NewScope(ScopeFunction, outer)
	if typ, _ := typeAndName(decl); typ != nil {
		b.typeSyntax(typ)
	}
	for _, child := range decl.Children() {
		switch child.Grammar() {
		case "parameter_list":
			b.parameters(child, fs)
		case "block", "arrow_expression_clause", "constructor_initializer":
			b.visit(child, fs)
		}
	}
}

func (b *binder) property(decl *syntax.Node, outer *Scope) {
	ps := NewScope(ScopeFunction, outer)
	typNode, nameNode := typeAndName(decl)
	typ, ok := b.typeSyntax(typNode)
	value := Definition{Name: "value", Kind: DefParam}
	if ok {
		value.Type = typ
	}
	ps.Define(value)
	for _, child := range decl.Children() {
		switch {
		case child.Grammar() == "bracketed_parameter_list":
			b.parameters(child, ps)
		case child.Grammar() == "accessor_list", child.Grammar() == "arrow_expression_clause":
			b.visit(child, ps)
		case child != typNode && child != nameNode && isExpression(child):
			b.expr(child, ps)
		}
	}
}

func (b *binder) parameters(list *syntax.Node, s *Scope) {
	for _, param := range list.ChildrenByGrammar("parameter") {
		typNode, nameNode := typeAndName(param)
		def := Definition{Kind: DefParam}
		if typ, ok := b.typeSyntax(typNode); ok {
			def.Type = typ
		}
		if nameNode != nil {
			def.Name = nameNode.Text()
			s.Define(def)
		}
		if eq := indexOfToken(param, "="); eq >= 0 {
			b.visit(param.Child(eq+1), s)
		}
	}
}

// typeSyntax resolves a type node in the current context and records the
// result as the node's symbol.
func (b *binder) typeSyntax(n *syntax.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	typ, ok := b.index.resolveType(n, b.ctx)
	if ok {
		b.oracle.setSymbol(n, typ)
	}
	return typ, ok
}

func (b *binder) isImplicit(typ *syntax.Node) bool {
	if typ == nil || typ.Grammar() == "implicit_type" {
		return true
	}
	if typ.Grammar() == "identifier" && typ.Text() == "var" {
		_, declared := b.index.resolveName("var", b.ctx)
		return !declared
	}
	return false
}

func (b *binder) visit(n *syntax.Node, s *Scope) {
	if n == nil {
		return
	}
	if isExpression(n) {
		b.expr(n, s)
		return
	}
	if n.IsToken() {
		return
	}
	switch n.Grammar() {
	case "block", "switch_section", "for_statement", "using_statement", "fixed_statement":
		b.children(n, NewScope(ScopeBlock, s))
	case "variable_declaration":
		b.variableDeclaration(n, s)
	case "local_function_statement":
		b.localFunction(n, s)
	case "foreach_statement":
		b.foreach(n, s)
	case "catch_clause":
		b.catchClause(n, s)
	case "declaration_pattern":
		b.declarationPattern(n, s)
	default:
		b.children(n, s)
	}
}

func (b *binder) children(n *syntax.Node, s *Scope) {
	for _, child := range n.Children() {
		b.visit(child, s)
	}
}

func (b *binder) variableDeclaration(n *syntax.Node, s *Scope) {
	typNode := firstType(n)
	implicit := b.isImplicit(typNode)
	var declared string
	explicit := false
	if !implicit {
		declared, explicit = b.typeSyntax(typNode)
	}

	for _, declarator := range n.ChildrenByGrammar("variable_declarator") {
		typ, ok := declared, explicit
		if i := declarator.ChildIndex(syntax.KindInitializer); i >= 0 {
			init := declarator.Child(i)
			vt, vok := b.expr(init.Child(init.ChildCount()-1), s)
			if implicit {
				typ, ok = vt, vok
				if ok && typNode != nil {
					b.oracle.setSymbol(typNode, vt)
				}
			}
		}
		name := declarator.ChildByGrammar("identifier")
		if name == nil {
			continue
		}
		def := Definition{Name: name.Text(), Kind: DefLocal}
		if ok {
			def.Type = typ
		}
		s.Define(def)
	}
}

func (b *binder) localFunction(n *syntax.Node, s *Scope) {
	typNode, nameNode := typeAndName(n)
	rt, ok := b.typeSyntax(typNode)
	if nameNode != nil {
		def := Definition{Name: nameNode.Text(), Kind: DefFunction}
		if ok {
			def.Type = rt
		}
		s.Define(def)
	}
	fs := NewScope(ScopeFunction, s)
	for _, child := range n.Children() {
		switch child.Grammar() {
		case "parameter_list":
			b.parameters(child, fs)
		case "block", "arrow_expression_clause":
			b.visit(child, fs)
		}
	}
}

func (b *binder) foreach(n *syntax.Node, s *Scope) {
	in := indexOfToken(n, "in")
	if in < 0 {
		b.children(n, s)
		return
	}
	collection := n.Child(in + 1)
	ct, cok := b.expr(collection, s)

	inner := NewScope(ScopeBlock, s)
	typNode, nameNode := typeAndName(n)
	def := Definition{Kind: DefLocal}
	if b.isImplicit(typNode) {
		if elem, ok := elementType(ct); cok && ok {
			def.Type = elem
			if typNode != nil {
				b.oracle.setSymbol(typNode, elem)
			}
		}
	} else if typ, ok := b.typeSyntax(typNode); ok {
		def.Type = typ
	}
	if nameNode != nil {
		def.Name = nameNode.Text()
		inner.Define(def)
	}
	for _, child := range n.Children()[in+2:] {
		b.visit(child, inner)
	}
}

func (b *binder) catchClause(n *syntax.Node, s *Scope) {
	inner := NewScope(ScopeBlock, s)
	for _, child := range n.Children() {
		if child.Grammar() != "catch_declaration" {
			b.visit(child, inner)
			continue
		}
		typNode, nameNode := typeAndName(child)
		def := Definition{Kind: DefLocal}
		if typ, ok := b.typeSyntax(typNode); ok {
			def.Type = typ
		}
		if nameNode != nil {
			def.Name = nameNode.Text()
			inner.Define(def)
		}
	}
}

func (b *binder) declarationPattern(n *syntax.Node, s *Scope) {
	typNode, nameNode := typeAndName(n)
	def := Definition{Kind: DefLocal}
	if typ, ok := b.typeSyntax(typNode); ok {
		def.Type = typ
	}
	if nameNode != nil {
		def.Name = nameNode.Text()
		s.Define(def)
	}
}

func (b *binder) lambda(n *syntax.Node, s *Scope) {
	ls := NewScope(ScopeLambda, s)
	arrow := indexOfToken(n, "=>")
	for i, child := range n.Children() {
		switch {
		case child.Grammar() == "parameter_list":
			b.parameters(child, ls)
		case i < arrow && child.Grammar() == "identifier":
			ls.Define(Definition{Name: child.Text(), Kind: DefParam})
		case i > arrow:
			b.visit(child, ls)
		}
	}
}

// expr binds an expression and records its type when it resolves.
func (b *binder) expr(n *syntax.Node, s *Scope) (string, bool) {
	if n == nil {
		return "", false
	}
	typ, ok := b.exprType(n, s)
	if ok {
		b.oracle.setType(n, typ)
	}
	return typ, ok
}

func (b *binder) exprType(n *syntax.Node, s *Scope) (string, bool) {
	switch n.Grammar() {
	case "identifier":
		return b.identifier(n.Text(), s)
	case "this", "this_expression":
		return b.ctx.current()
	case "base", "base_expression":
		if cur, ok := b.ctx.current(); ok {
			if info, ok := b.index.Lookup(cur); ok && len(info.Bases) > 0 {
				return info.Bases[0], true
			}
		}
		return "", false
	case "parenthesized_expression", "checked_expression":
		return b.expr(innerExpression(n), s)
	case "ref_expression":
		return b.expr(n.Child(n.ChildCount()-1), s)
	case "member_access_expression":
		return b.memberAccess(n, s)
	case "invocation_expression":
		return b.invocation(n, s)
	case "element_access_expression":
		return b.elementAccess(n, s)
	case "object_creation_expression", "array_creation_expression", "default_expression", "stackalloc_expression":
		typ, ok := b.typeSyntax(firstType(n))
		for _, child := range n.Children() {
			if !typeGrammars[child.Grammar()] {
				b.visit(child, s)
			}
		}
		return typ, ok
	case "cast_expression":
		b.visit(n.Child(n.ChildCount()-1), s)
		return b.typeSyntax(firstType(n))
	case "as_expression":
		b.visit(n.Child(0), s)
		return b.typeSyntax(n.Child(n.ChildCount() - 1))
	case "is_expression", "is_pattern_expression":
		b.children(n, s)
		return "System.Boolean", true
	case "assignment_expression":
		b.expr(n.Child(n.ChildCount()-1), s)
		return b.expr(n.Child(0), s)
	case "binary_expression":
		return b.binary(n, s)
	case "conditional_expression":
		return b.conditional(n, s)
	case "prefix_unary_expression", "postfix_unary_expression":
		return b.unary(n, s)
	case "declaration_expression":
		return b.declarationExpression(n, s)
	case "lambda_expression", "anonymous_method_expression":
		b.lambda(n, s)
		return "", false
	case "typeof_expression":
		return "System.Type", true
	case "boolean_literal":
		return "System.Boolean", true
	case "character_literal":
		return "System.Char", true
	case "string_literal", "verbatim_string_literal", "raw_string_literal", "interpolated_string_expression":
		b.children(n, s)
		return "System.String", true
	case "integer_literal":
		return integerType(n.Text()), true
	case "real_literal":
		return realType(n.Text()), true
	case "null_literal":
		return "", false
	}
	b.children(n, s)
	return "", false
}

// identifier resolves a simple name: locals and parameters first, then
// members of the enclosing types from the innermost outwards.
func (b *binder) identifier(name string, s *Scope) (string, bool) {
	if def, ok := s.Lookup(name); ok {
		if def.Kind == DefFunction {
			return "", false
		}
		return def.Type, def.Type != ""
	}
	for i := len(b.ctx.enclosing) - 1; i >= 0; i-- {
		if typ, ok := b.index.Member(b.ctx.enclosing[i], name); ok {
			return typ, true
		}
	}
	return "", false
}

// receiver returns the type whose members left.name refers to: the type of
// the expression, or the type left names for static access.
func (b *binder) receiver(left *syntax.Node, s *Scope) (string, bool) {
	if typ, ok := b.expr(left, s); ok {
		return typ, true
	}
	switch left.Grammar() {
	case "predefined_type":
		return b.typeSyntax(left)
	case "identifier", "generic_name", "qualified_name", "alias_qualified_name", "member_access_expression":
		typ, ok := b.index.resolveName(dottedName(left), b.ctx)
		if ok {
			b.oracle.setSymbol(left, typ)
		}
		return typ, ok
	}
	return "", false
}

func (b *binder) memberAccess(n *syntax.Node, s *Scope) (string, bool) {
	owner, ok := b.receiver(n.Child(0), s)
	name := memberName(n)
	if !ok || name == "" {
		return "", false
	}
	if _, isArray := elementType(owner); isArray {
		switch name {
		case "Length", "Rank":
			return "System.Int32", true
		case "LongLength":
			return "System.Int64", true
		}
		return "", false
	}
	return b.index.Member(owner, name)
}

func (b *binder) invocation(n *syntax.Node, s *Scope) (string, bool) {
	fn := n.Child(0)
	if args := n.ChildByGrammar("argument_list"); args != nil {
		b.visit(args, s)
	}
	switch fn.Grammar() {
	case "identifier", "generic_name":
		name := genericBase(fn)
		if def, ok := s.Lookup(name); ok {
			if def.Kind == DefFunction && def.Type != "" {
				return def.Type, true
			}
			return "", false
		}
		for i := len(b.ctx.enclosing) - 1; i >= 0; i-- {
			if typ, ok := b.index.Method(b.ctx.enclosing[i], name); ok {
				return typ, true
			}
		}
	case "member_access_expression":
		if owner, ok := b.receiver(fn.Child(0), s); ok {
			return b.index.Method(owner, memberName(fn))
		}
	default:
		b.visit(fn, s)
	}
	return "", false
}

func (b *binder) elementAccess(n *syntax.Node, s *Scope) (string, bool) {
	if args := n.ChildByGrammar("bracketed_argument_list"); args != nil {
		b.visit(args, s)
	}
	target, ok := b.expr(n.Child(0), s)
	if !ok {
		return "", false
	}
	if elem, ok := elementType(target); ok {
		return elem, true
	}
	if target == "System.String" {
		return "System.Char", true
	}
	return b.index.Indexer(target)
}

func (b *binder) binary(n *syntax.Node, s *Scope) (string, bool) {
	left, _ := b.expr(n.Child(0), s)
	right, _ := b.expr(n.Child(n.ChildCount()-1), s)
	op := ""
	if n.ChildCount() == 3 {
		op = n.Child(1).Text()
	}
	switch op {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return "System.Boolean", true
	case "??":
		if left != "" {
			return strings.TrimSuffix(left, "?"), true
		}
		return right, right != ""
	case "+":
		if left == "System.String" || right == "System.String" {
			return "System.String", true
		}
	}
	if left != "" && left == right {
		return left, true
	}
	return "", false
}

func (b *binder) conditional(n *syntax.Node, s *Scope) (string, bool) {
	var parts []*syntax.Node
	for _, child := range n.Children() {
		if child.IsToken() && (child.Grammar() == "?" || child.Grammar() == ":") {
			continue
		}
		parts = append(parts, child)
	}
	if len(parts) != 3 {
		b.children(n, s)
		return "", false
	}
	b.expr(parts[0], s)
	whenTrue, tok := b.expr(parts[1], s)
	whenFalse, fok := b.expr(parts[2], s)
	switch {
	case tok && fok && whenTrue == whenFalse:
		return whenTrue, true
	case tok && parts[2].Kind() == syntax.KindNullLiteral:
		return whenTrue, true
	case fok && parts[1].Kind() == syntax.KindNullLiteral:
		return whenFalse, true
	}
	return "", false
}

func (b *binder) unary(n *syntax.Node, s *Scope) (string, bool) {
	var operand *syntax.Node
	op := ""
	for _, child := range n.Children() {
		if child.IsToken() && child.Grammar() != "identifier" && !isExpression(child) {
			op = child.Text()
			continue
		}
		operand = child
	}
	typ, ok := b.expr(operand, s)
	switch op {
	case "!":
		return "System.Boolean", true
	case "&", "*", "^":
		return "", false
	}
	return typ, ok
}

func (b *binder) declarationExpression(n *syntax.Node, s *Scope) (string, bool) {
	typNode, nameNode := typeAndName(n)
	def := Definition{Kind: DefLocal}
	typ, ok := "", false
	if !b.isImplicit(typNode) {
		typ, ok = b.typeSyntax(typNode)
	}
	if ok {
		def.Type = typ
	}
	if nameNode != nil {
		def.Name = nameNode.Text()
		s.Define(def)
	}
	return typ, ok
}

func isExpression(n *syntax.Node) bool {
	g := n.Grammar()
	switch {
	case g == "identifier", g == "this", g == "base":
		return true
	case strings.HasSuffix(g, "_expression"), strings.HasSuffix(g, "_literal"):
		return true
	}
	return false
}

func innerExpression(n *syntax.Node) *syntax.Node {
	for _, child := range n.Children() {
		if !child.IsToken() || isExpression(child) {
			return child
		}
	}
	return nil
}

func memberName(n *syntax.Node) string {
	last := n.Child(n.ChildCount() - 1)
	if last == nil {
		return ""
	}
	switch last.Grammar() {
	case "identifier":
		return last.Text()
	case "generic_name":
		return genericBase(last)
	}
	return ""
}

func indexOfToken(n *syntax.Node, text string) int {
	for i, child := range n.Children() {
		if child.IsToken() && child.TokenText() == text {
			return i
		}
	}
	return -1
}

func integerType(text string) string {
	suffix := strings.ToLower(strings.TrimLeft(text, "0123456789abcdefABCDEFxX_"))
	switch {
	case strings.Contains(suffix, "u") && strings.Contains(suffix, "l"):
		return "System.UInt64"
	case strings.Contains(suffix, "l"):
		return "System.Int64"
	case strings.Contains(suffix, "u"):
		return "System.UInt32"
	}
	return "System.Int32"
}

func realType(text string) string {
	switch strings.ToLower(text[len(text)-1:]) {
	case "f":
		return "System.Single"
	case "m":
		return "System.Decimal"
	}
	return "System.Double"
}
