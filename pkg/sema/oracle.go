package sema

import "github.com/odvcencio/tileref/pkg/syntax"

// nodeKey identifies a node by source position and production. Copies of a
// node made by tree rewrites keep both, so they keep their answers.
type nodeKey struct {
	span    syntax.Span
	grammar string
}

func keyOf(n *syntax.Node) (nodeKey, bool) {
	if n == nil || !n.Span().Valid() {
		return nodeKey{}, false
	}
	return nodeKey{span: n.Span(), grammar: n.Grammar()}, true
}

// Oracle answers type and symbol questions for the nodes of one file.
// It is read-only once Bind returns.
type Oracle struct {
	types   map[nodeKey]string
	symbols map[nodeKey]string
}

func newOracle() *Oracle {
	return &Oracle{
		types:   map[nodeKey]string{},
		symbols: map[nodeKey]string{},
	}
}

// TypeOf returns the static type of an expression node.
func (o *Oracle) TypeOf(n *syntax.Node) (string, bool) {
	key, ok := keyOf(n)
	if !ok {
		return "", false
	}
	typ, ok := o.types[key]
	return typ, ok
}

// SymbolOf returns the type a piece of type syntax refers to.
func (o *Oracle) SymbolOf(n *syntax.Node) (string, bool) {
	key, ok := keyOf(n)
	if !ok {
		return "", false
	}
	sym, ok := o.symbols[key]
	return sym, ok
}

func (o *Oracle) setType(n *syntax.Node, typ string) {
	if key, ok := keyOf(n); ok {
		o.types[key] = typ
	}
}

func (o *Oracle) setSymbol(n *syntax.Node, sym string) {
	if key, ok := keyOf(n); ok {
		o.symbols[key] = sym
	}
}
