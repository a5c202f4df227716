// Package syntax defines the immutable, lossless syntax tree that rewrite rules operate on.
package syntax

import (
	"fmt"
	"io"
	"strings"
)

// Kind tags the node categories the rewriter distinguishes. Everything the
// rules never look at is either a Token, a Statement or Other.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindToken
	KindNullLiteral
	KindCompilationUnit
	KindLocalDeclaration
	KindVariableDeclaration
	KindDeclarator
	KindInitializer
	KindRefType
	KindRefExpression
	KindAssignment
	KindBinary
	KindObjectCreation
	KindElementAccess
	KindExpressionStatement
	KindStatement
	KindOther
)

var kindNames = [...]string{
	KindInvalid:             "invalid",
	KindToken:               "token",
	KindNullLiteral:         "null_literal",
	KindCompilationUnit:     "compilation_unit",
	KindLocalDeclaration:    "local_declaration",
	KindVariableDeclaration: "variable_declaration",
	KindDeclarator:          "declarator",
	KindInitializer:         "initializer",
	KindRefType:             "ref_type",
	KindRefExpression:       "ref_expression",
	KindAssignment:          "assignment",
	KindBinary:              "binary",
	KindObjectCreation:      "object_creation",
	KindElementAccess:       "element_access",
	KindExpressionStatement: "expression_statement",
	KindStatement:           "statement",
	KindOther:               "other",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsStatement reports whether nodes of this kind may stand wherever a statement is expected.
func (k Kind) IsStatement() bool {
	switch k {
	case KindLocalDeclaration, KindExpressionStatement, KindStatement:
		return true
	}
	return false
}

// Span is a half-open byte range in the source a node was parsed from.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NoSpan marks generated nodes that have no source position.
var NoSpan = Span{Start: -1, End: -1}

func (s Span) Valid() bool {
	return s.Start >= 0 && s.End >= s.Start
}

// Node is one syntactic construct. Nodes are never mutated after
// construction; the With* builders return new nodes that share every
// untouched child with the receiver.
type Node struct {
	kind     Kind
	grammar  string
	span     Span
	token    bool
	leading  string
	text     string
	trailing string
	children []*Node
}

// NewToken returns a leaf node. Leading and trailing hold the incidental
// text (whitespace, comments, directives) attached to the token.
func NewToken(kind Kind, grammar, leading, text, trailing string, span Span) *Node {
	return &Node{
		kind:     kind,
		grammar:  grammar,
		span:     span,
		token:    true,
		leading:  leading,
		text:     text,
		trailing: trailing,
	}
}

// NewNode returns an interior node owning children. Nil children are dropped.
func NewNode(kind Kind, grammar string, span Span, children ...*Node) *Node {
	owned := make([]*Node, 0, len(children))
	for _, child := range children {
		if child != nil {
			owned = append(owned, child)
		}
	}
	return &Node{
		kind:     kind,
		grammar:  grammar,
		span:     span,
		children: owned,
	}
}

// Token is a generated token with no trivia and no source position.
func Token(grammar, text string) *Node {
	return NewToken(KindToken, grammar, "", text, "", NoSpan)
}

func (n *Node) Kind() Kind      { return n.kind }
func (n *Node) Grammar() string { return n.grammar }
func (n *Node) Span() Span      { return n.span }
func (n *Node) IsToken() bool   { return n.token }

// TokenText returns the token's text without trivia, or "" for interior nodes.
func (n *Node) TokenText() string {
	if !n.token {
		return ""
	}
	return n.text
}

func (n *Node) ChildCount() int {
	return len(n.children)
}

func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// FirstToken returns the leftmost token, or nil for an empty interior node.
func (n *Node) FirstToken() *Node {
	for cur := n; cur != nil; {
		if cur.token {
			return cur
		}
		if len(cur.children) == 0 {
			return nil
		}
		cur = cur.children[0]
	}
	return nil
}

// LastToken returns the rightmost token, or nil for an empty interior node.
func (n *Node) LastToken() *Node {
	for cur := n; cur != nil; {
		if cur.token {
			return cur
		}
		if len(cur.children) == 0 {
			return nil
		}
		cur = cur.children[len(cur.children)-1]
	}
	return nil
}

func (n *Node) LeadingTrivia() string {
	if tok := n.FirstToken(); tok != nil {
		return tok.leading
	}
	return ""
}

func (n *Node) TrailingTrivia() string {
	if tok := n.LastToken(); tok != nil {
		return tok.trailing
	}
	return ""
}

// FullText reconstructs the node's source, trivia included.
func (n *Node) FullText() string {
	var b strings.Builder
	n.writeFull(&b)
	return b.String()
}

// Text is FullText without the outermost leading and trailing trivia.
func (n *Node) Text() string {
	full := n.FullText()
	full = strings.TrimPrefix(full, n.LeadingTrivia())
	return strings.TrimSuffix(full, n.TrailingTrivia())
}

// WriteTo writes the node's full text to w.
func (n *Node) WriteTo(w io.Writer) (int64, error) {
	written, err := io.WriteString(w, n.FullText())
	return int64(written), err
}

func (n *Node) writeFull(b *strings.Builder) {
	if n.token {
		b.WriteString(n.leading)
		b.WriteString(n.text)
		b.WriteString(n.trailing)
		return
	}
	for _, child := range n.children {
		child.writeFull(b)
	}
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%s %q)", n.kind, n.grammar, n.Text())
}
