package sema

import (
	"strings"

	"github.com/odvcencio/tileref/pkg/syntax"
)

var predefinedTypes = map[string]string{
	"bool":    "System.Boolean",
	"byte":    "System.Byte",
	"sbyte":   "System.SByte",
	"char":    "System.Char",
	"decimal": "System.Decimal",
	"double":  "System.Double",
	"float":   "System.Single",
	"int":     "System.Int32",
	"uint":    "System.UInt32",
	"nint":    "System.IntPtr",
	"nuint":   "System.UIntPtr",
	"long":    "System.Int64",
	"ulong":   "System.UInt64",
	"short":   "System.Int16",
	"ushort":  "System.UInt16",
	"object":  "System.Object",
	"dynamic": "System.Object",
	"string":  "System.String",
	"void":    "System.Void",
}

var referencePredefined = map[string]bool{
	"System.Object": true,
	"System.String": true,
	"System.Void":   true,
}

// typeGrammars lists the productions that can appear where a type is expected.
var typeGrammars = map[string]bool{
	"identifier":            true,
	"generic_name":          true,
	"qualified_name":        true,
	"alias_qualified_name":  true,
	"predefined_type":       true,
	"array_type":            true,
	"nullable_type":         true,
	"pointer_type":          true,
	"function_pointer_type": true,
	"ref_type":              true,
	"scoped_type":           true,
	"tuple_type":            true,
	"implicit_type":         true,
}

// namespaceScope is one namespace declaration (or the file itself) together
// with the using directives written inside it.
type namespaceScope struct {
	name    string
	parent  *namespaceScope
	usings  []string
	aliases map[string]string
}

func newFileNamespace() *namespaceScope {
	return &namespaceScope{aliases: map[string]string{}}
}

func (ns *namespaceScope) child(name string) *namespaceScope {
	return &namespaceScope{
		name:    joinName(ns.name, name),
		parent:  ns,
		aliases: map[string]string{},
	}
}

// addUsing records a using directive. Static usings are ignored.
func (ns *namespaceScope) addUsing(directive *syntax.Node) {
	var alias string
	var target *syntax.Node
	static := false
	for i := 0; i < directive.ChildCount(); i++ {
		child := directive.Child(i)
		switch {
		case child.IsToken() && child.TokenText() == "static":
			static = true
		case child.IsToken() && child.TokenText() == "=":
			if prev := directive.Child(i - 1); prev != nil {
				alias = prev.Text()
			}
			target = directive.Child(i + 1)
		case target == nil && alias == "" && isNameGrammar(child.Grammar()):
			target = child
		}
	}
	if target == nil || static && alias == "" {
		return
	}
	if alias != "" {
		ns.aliases[alias] = dottedName(target)
		return
	}
	ns.usings = append(ns.usings, dottedName(target))
}

// nameContext is where a name is written: its namespace chain and the types
// enclosing it, innermost last.
type nameContext struct {
	ns        *namespaceScope
	enclosing []string
}

func (c nameContext) withType(fqn string) nameContext {
	enclosing := make([]string, len(c.enclosing), len(c.enclosing)+1)
	copy(enclosing, c.enclosing)
	return nameContext{ns: c.ns, enclosing: append(enclosing, fqn)}
}

// container is the fully-qualified name new declarations are placed in.
func (c nameContext) container() string {
	if n := len(c.enclosing); n > 0 {
		return c.enclosing[n-1]
	}
	return c.ns.name
}

func (c nameContext) current() (string, bool) {
	if n := len(c.enclosing); n > 0 {
		return c.enclosing[n-1], true
	}
	return "", false
}

// resolveType maps type syntax to a type name. ref and scoped wrappers are
// unwrapped; var and unknown names are unresolved.
func (idx *Index) resolveType(n *syntax.Node, ctx nameContext) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Grammar() {
	case "predefined_type":
		fqn, ok := predefinedTypes[n.Text()]
		return fqn, ok
	case "implicit_type":
		return "", false
	case "identifier":
		if n.Text() == "var" {
			if fqn, ok := idx.resolveName("var", ctx); ok {
				return fqn, true
			}
			return "", false
		}
		return idx.resolveName(n.Text(), ctx)
	case "generic_name":
		fqn, ok := idx.resolveName(genericBase(n), ctx)
		if !ok {
			return "", false
		}
		var args []string
		if list := n.ChildByGrammar("type_argument_list"); list != nil {
			for _, arg := range typeChildren(list) {
				if typ, ok := idx.resolveType(arg, ctx); ok {
					args = append(args, typ)
				} else {
					args = append(args, arg.Text())
				}
			}
		}
		return fqn + "<" + strings.Join(args, ",") + ">", true
	case "qualified_name", "alias_qualified_name":
		return idx.resolveName(dottedName(n), ctx)
	case "array_type":
		elem, ok := idx.resolveType(firstType(n), ctx)
		if !ok {
			return "", false
		}
		rank := n.ChildByGrammar("array_rank_specifier")
		return elem + rankSuffix(rank), true
	case "nullable_type":
		inner, ok := idx.resolveType(firstType(n), ctx)
		if !ok {
			return "", false
		}
		if idx.isValueType(inner) {
			return inner + "?", true
		}
		return inner, true
	case "ref_type", "scoped_type":
		return idx.resolveType(firstType(n), ctx)
	}
	return "", false
}

// resolveName resolves a possibly dotted type name: enclosing types and
// their bases first, then for each namespace level from the innermost
// outwards its members, aliases and using namespaces. A name matched by
// more than one using namespace is unresolved.
func (idx *Index) resolveName(name string, ctx nameContext) (string, bool) {
	if alias, rest, ok := strings.Cut(name, "::"); ok {
		if alias == "global" {
			return idx.lookupType(rest)
		}
		if target, ok := lookupAlias(alias, ctx); ok {
			return idx.lookupType(joinName(target, rest))
		}
		return "", false
	}
	for i := len(ctx.enclosing) - 1; i >= 0; i-- {
		if fqn, ok := idx.nestedType(ctx.enclosing[i], name, map[string]bool{}); ok {
			return fqn, true
		}
	}

	first, rest, dotted := strings.Cut(name, ".")
	for ns := ctx.ns; ns != nil; ns = ns.parent {
		if fqn, ok := idx.lookupType(joinName(ns.name, name)); ok {
			return fqn, true
		}
		if target, ok := ns.aliases[first]; ok {
			if !dotted {
				return idx.lookupType(target)
			}
			return idx.lookupType(joinName(target, rest))
		}

		var found string
		for _, using := range ns.usings {
			fqn, ok := idx.lookupType(joinName(using, name))
			if !ok || fqn == found {
				continue
			}
			if found != "" {
				return "", false
			}
			found = fqn
		}
		if found != "" {
			return found, true
		}

		stop := ""
		if ns.parent != nil {
			stop = ns.parent.name
		}
		for outer := parentName(ns.name); len(outer) > len(stop); outer = parentName(outer) {
			if fqn, ok := idx.lookupType(joinName(outer, name)); ok {
				return fqn, true
			}
		}
	}
	return "", false
}

func lookupAlias(alias string, ctx nameContext) (string, bool) {
	for ns := ctx.ns; ns != nil; ns = ns.parent {
		if target, ok := ns.aliases[alias]; ok {
			return target, true
		}
	}
	return "", false
}

// nestedType finds name declared inside owner or one of its base types.
// Only bases resolved so far are searched.
func (idx *Index) nestedType(owner, name string, seen map[string]bool) (string, bool) {
	if seen[owner] {
		return "", false
	}
	seen[owner] = true
	if fqn, ok := idx.lookupType(owner + "." + name); ok {
		return fqn, true
	}
	info, ok := idx.types[stripTypeArgs(owner)]
	if !ok {
		return "", false
	}
	for _, base := range info.Bases {
		if fqn, ok := idx.nestedType(stripTypeArgs(base), name, seen); ok {
			return fqn, true
		}
	}
	return "", false
}

func (idx *Index) lookupType(fqn string) (string, bool) {
	if _, ok := idx.types[fqn]; ok {
		return fqn, true
	}
	return "", false
}

func (idx *Index) isValueType(fqn string) bool {
	if info, ok := idx.types[stripTypeArgs(fqn)]; ok {
		return info.Kind == KindStruct || info.Kind == KindEnum
	}
	if strings.HasPrefix(fqn, "System.") && !referencePredefined[fqn] {
		for _, predefined := range predefinedTypes {
			if predefined == fqn {
				return true
			}
		}
	}
	return false
}

func isNameGrammar(grammar string) bool {
	switch grammar {
	case "identifier", "qualified_name", "generic_name", "alias_qualified_name":
		return true
	}
	return false
}

// dottedName flattens a name to dotted text with type arguments dropped,
// e.g. "A.B.C" for A.B<int>.C.
func dottedName(n *syntax.Node) string {
	var b strings.Builder
	syntax.Inspect(n, func(c *syntax.Node) bool {
		if c.Grammar() == "type_argument_list" {
			return false
		}
		if c.IsToken() {
			b.WriteString(strings.TrimSpace(c.TokenText()))
		}
		return true
	})
	return b.String()
}

func genericBase(n *syntax.Node) string {
	if id := n.ChildByGrammar("identifier"); id != nil {
		return id.Text()
	}
	return dottedName(n)
}

func rankSuffix(rank *syntax.Node) string {
	if rank == nil {
		return "[]"
	}
	commas := 0
	for _, child := range rank.Children() {
		if child.IsToken() && child.TokenText() == "," {
			commas++
		}
	}
	return "[" + strings.Repeat(",", commas) + "]"
}

// elementType returns the element type of an array type name.
func elementType(typ string) (string, bool) {
	if !strings.HasSuffix(typ, "]") {
		return "", false
	}
	i := strings.LastIndex(typ, "[")
	if i <= 0 {
		return "", false
	}
	return typ[:i], true
}

func stripTypeArgs(typ string) string {
	if i := strings.IndexByte(typ, '<'); i >= 0 {
		return typ[:i]
	}
	return typ
}

func firstType(n *syntax.Node) *syntax.Node {
	for _, child := range n.Children() {
		if typeGrammars[child.Grammar()] {
			return child
		}
	}
	return nil
}

func typeChildren(n *syntax.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, child := range n.Children() {
		if typeGrammars[child.Grammar()] {
			out = append(out, child)
		}
	}
	return out
}

// typeAndName returns the first type child of a member or parameter and the
// identifier that names it. For "Tile tile" both are identifiers.
func typeAndName(n *syntax.Node) (typ, name *syntax.Node) {
	for _, child := range n.Children() {
		if child.IsToken() && child.TokenText() == "=" {
			break
		}
		switch {
		case typ == nil && typeGrammars[child.Grammar()]:
			typ = child
		case typ != nil && name == nil && child.Grammar() == "identifier":
			name = child
		}
	}
	if name == nil && typ != nil && typ.Grammar() == "identifier" {
		return nil, typ
	}
	return typ, name
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}

func parentName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}
