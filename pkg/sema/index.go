// Package sema builds a project-wide C# declaration index and binds per-file
// oracles that answer type and symbol questions about syntax nodes.
package sema

import (
	"errors"
	"sort"
	"strings"

	"github.com/odvcencio/tileref/pkg/syntax"
)

// ErrIndexFinalized is returned when files are added after Finalize.
var ErrIndexFinalized = errors.New("sema: index already finalized")

// TypeKind classifies a declared type.
type TypeKind string

const (
	KindClass     TypeKind = "class"
	KindStruct    TypeKind = "struct"
	KindInterface TypeKind = "interface"
	KindRecord    TypeKind = "record"
	KindEnum      TypeKind = "enum"
	KindDelegate  TypeKind = "delegate"
	KindExternal  TypeKind = "external"
)

var declKinds = map[string]TypeKind{
	"class_declaration":         KindClass,
	"struct_declaration":        KindStruct,
	"interface_declaration":     KindInterface,
	"record_declaration":        KindRecord,
	"record_struct_declaration": KindStruct,
	"enum_declaration":          KindEnum,
	"delegate_declaration":      KindDelegate,
}

// TypeInfo describes one type. Member maps hold resolved type names and are
// filled by Finalize.
type TypeInfo struct {
	Name    string
	Kind    TypeKind
	Bases   []string
	Fields  map[string]string
	Methods map[string]string
	Indexer string

	decls    []typeDecl
	baseRefs []typeRef
}

type typeDecl struct {
	node *syntax.Node
	ctx  nameContext // includes the type itself
}

type typeRef struct {
	node *syntax.Node
	ctx  nameContext
}

// Index is the project-wide declaration table. It is built by AddFile from
// every parsed file, then Finalize resolves member types. After Finalize the
// index is read-only and safe for concurrent use.
type Index struct {
	types     map[string]*TypeInfo
	finalized bool
}

func NewIndex() *Index {
	return &Index{types: map[string]*TypeInfo{}}
}

// Declare registers a type defined outside the project. Types the project
// itself declares keep their project definition.
func (idx *Index) Declare(fqn string) {
	if _, ok := idx.types[fqn]; ok {
		return
	}
	idx.types[fqn] = newTypeInfo(fqn, KindExternal)
}

// AddFile records every type declared in root. Partial declarations of the
// same type are merged.
func (idx *Index) AddFile(root *syntax.Node) error {
	if idx.finalized {
		return ErrIndexFinalized
	}
	walkDecls(root, declWalker{
		onType: func(decl *syntax.Node, fqn string, outer, inner nameContext) {
			info, ok := idx.types[fqn]
			if !ok || info.Kind == KindExternal {
				info = newTypeInfo(fqn, declKinds[decl.Grammar()])
				idx.types[fqn] = info
			}
			info.decls = append(info.decls, typeDecl{node: decl, ctx: inner})
			if bases := decl.ChildByGrammar("base_list"); bases != nil {
				for _, base := range typeChildren(bases) {
					info.baseRefs = append(info.baseRefs, typeRef{node: base, ctx: outer})
				}
				for _, primary := range bases.ChildrenByGrammar("primary_constructor_base_type") {
					if base := firstType(primary); base != nil {
						info.baseRefs = append(info.baseRefs, typeRef{node: base, ctx: outer})
					}
				}
			}
		},
	})
	return nil
}

func newTypeInfo(fqn string, kind TypeKind) *TypeInfo {
	return &TypeInfo{
		Name:    fqn,
		Kind:    kind,
		Fields:  map[string]string{},
		Methods: map[string]string{},
	}
}

// Finalize resolves base types and member types. Calling it again is a no-op.
func (idx *Index) Finalize() {
	if idx.finalized {
		return
	}
	names := idx.Types()
	for _, name := range names {
		info := idx.types[name]
		for _, ref := range info.baseRefs {
			if base, ok := idx.resolveType(ref.node, ref.ctx); ok && base != name {
				info.Bases = append(info.Bases, base)
			}
		}
	}
	for _, name := range names {
		info := idx.types[name]
		conflicts := map[string]bool{}
		for _, decl := range info.decls {
			idx.collectMembers(info, decl, conflicts)
		}
		for method := range conflicts {
			delete(info.Methods, method)
		}
	}
	idx.finalized = true
}

func (idx *Index) collectMembers(info *TypeInfo, decl typeDecl, conflicts map[string]bool) {
	if strings.HasPrefix(decl.node.Grammar(), "record") {
		if params := decl.node.ChildByGrammar("parameter_list"); params != nil {
			for _, param := range params.ChildrenByGrammar("parameter") {
				typNode, nameNode := typeAndName(param)
				if typ, ok := idx.resolveType(typNode, decl.ctx); ok && nameNode != nil {
					info.Fields[nameNode.Text()] = typ
				}
			}
		}
	}

	body := decl.node.ChildByGrammar("declaration_list")
	if body == nil {
		body = decl.node.ChildByGrammar("enum_member_declaration_list")
	}
	if body == nil {
		return
	}
	for _, member := range body.Children() {
		switch member.Grammar() {
		case "enum_member_declaration":
			if name := member.ChildByGrammar("identifier"); name != nil {
				info.Fields[name.Text()] = info.Name
			}
		case "field_declaration", "event_field_declaration":
			vars := member.ChildByGrammar("variable_declaration")
			if vars == nil {
				continue
			}
			typ, ok := idx.resolveType(firstType(vars), decl.ctx)
			if !ok {
				continue
			}
			for _, declarator := range vars.ChildrenByGrammar("variable_declarator") {
				if name := declarator.ChildByGrammar("identifier"); name != nil {
					info.Fields[name.Text()] = typ
				}
			}
		case "property_declaration", "event_declaration":
			typNode, nameNode := typeAndName(member)
			if typ, ok := idx.resolveType(typNode, decl.ctx); ok && nameNode != nil {
				info.Fields[nameNode.Text()] = typ
			}
		case "method_declaration":
			typNode, nameNode := typeAndName(member)
			if nameNode == nil {
				continue
			}
			name := nameNode.Text()
			typ, ok := idx.resolveType(typNode, decl.ctx)
			if !ok {
				conflicts[name] = true
				continue
			}
			if prev, seen := info.Methods[name]; seen && prev != typ {
				conflicts[name] = true
				continue
			}
			info.Methods[name] = typ
		case "indexer_declaration":
			if typ, ok := idx.resolveType(firstType(member), decl.ctx); ok {
				info.Indexer = typ
			}
		}
	}
}

// Lookup returns the type declared under fqn. Type arguments are ignored.
func (idx *Index) Lookup(fqn string) (*TypeInfo, bool) {
	info, ok := idx.types[stripTypeArgs(fqn)]
	return info, ok
}

// Types returns the names of all known types, sorted.
func (idx *Index) Types() []string {
	names := make([]string, 0, len(idx.types))
	for name := range idx.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Member returns the type of a field, property or event of typ, searching
// base types.
func (idx *Index) Member(typ, name string) (string, bool) {
	return idx.findMember(typ, map[string]bool{}, func(info *TypeInfo) (string, bool) {
		t, ok := info.Fields[name]
		return t, ok
	})
}

// Method returns the return type of a method of typ. Overloads with
// different return types are unresolved.
func (idx *Index) Method(typ, name string) (string, bool) {
	return idx.findMember(typ, map[string]bool{}, func(info *TypeInfo) (string, bool) {
		t, ok := info.Methods[name]
		return t, ok
	})
}

// Indexer returns the element type of typ's indexer.
func (idx *Index) Indexer(typ string) (string, bool) {
	return idx.findMember(typ, map[string]bool{}, func(info *TypeInfo) (string, bool) {
		return info.Indexer, info.Indexer != ""
	})
}

func (idx *Index) findMember(typ string, seen map[string]bool, get func(*TypeInfo) (string, bool)) (string, bool) {
	typ = stripTypeArgs(typ)
	if seen[typ] {
		return "", false
	}
	seen[typ] = true
	info, ok := idx.types[typ]
	if !ok {
		return "", false
	}
	if t, ok := get(info); ok {
		return t, true
	}
	for _, base := range info.Bases {
		if t, ok := idx.findMember(base, seen, get); ok {
			return t, true
		}
	}
	return "", false
}
