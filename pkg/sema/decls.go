package sema

import "github.com/odvcencio/tileref/pkg/syntax"

// declWalker receives the declarations of a compilation unit. Either
// callback may be nil.
type declWalker struct {
	// onType is called for every type declaration, nested ones included.
	// outer is the context the declaration is written in; inner adds the
	// declared type itself.
	onType func(decl *syntax.Node, fqn string, outer, inner nameContext)
	// onGlobal is called for top-level statements.
	onGlobal func(stmt *syntax.Node, ctx nameContext)
}

func walkDecls(root *syntax.Node, w declWalker) {
	w.items(root.Children(), nameContext{ns: newFileNamespace()})
}

func (w declWalker) items(items []*syntax.Node, ctx nameContext) {
	for _, item := range items {
		switch item.Grammar() {
		case "using_directive":
			ctx.ns.addUsing(item)
		case "namespace_declaration":
			inner := nameContext{ns: ctx.ns.child(namespaceName(item))}
			if body := item.ChildByGrammar("declaration_list"); body != nil {
				w.items(body.Children(), inner)
			}
		case "file_scoped_namespace_declaration":
			// Later items belong to the namespace, whether the grammar nests
			// them or leaves them as siblings.
			ctx = nameContext{ns: ctx.ns.child(namespaceName(item))}
			w.items(item.Children(), ctx)
		case "global_statement":
			if w.onGlobal != nil {
				w.onGlobal(item, ctx)
			}
		default:
			if _, ok := declKinds[item.Grammar()]; ok {
				w.typeDecl(item, ctx)
			}
		}
	}
}

func (w declWalker) typeDecl(decl *syntax.Node, outer nameContext) {
	name := decl.ChildByGrammar("identifier")
	if decl.Grammar() == "delegate_declaration" {
		_, name = typeAndName(decl)
	}
	if name == nil {
		return
	}
	fqn := joinName(outer.container(), name.Text())
	inner := outer.withType(fqn)
	if w.onType != nil {
		w.onType(decl, fqn, outer, inner)
	}
	body := decl.ChildByGrammar("declaration_list")
	if body == nil {
		return
	}
	for _, member := range body.Children() {
		if _, ok := declKinds[member.Grammar()]; ok {
			w.typeDecl(member, inner)
		}
	}
}

func namespaceName(decl *syntax.Node) string {
	for _, child := range decl.Children() {
		if isNameGrammar(child.Grammar()) {
			return dottedName(child)
		}
	}
	return ""
}
