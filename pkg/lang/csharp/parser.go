// Package csharp implements the lang.Parser interface for C# using tree-sitter.
package csharp

import (
	"errors"
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"

	"github.com/odvcencio/tileref/pkg/syntax"
)

var (
	// ErrNoSyntaxTree is returned when tree-sitter produces no tree or no root.
	ErrNoSyntaxTree = errors.New("no syntax tree")
	// ErrLossyTree is returned when the converted tree does not reproduce the source.
	ErrLossyTree = errors.New("syntax tree does not reproduce source")
)

// Diagnostics counts the recoverable problems tree-sitter reported while parsing.
type Diagnostics struct {
	Errors  int `json:"errors"`
	Missing int `json:"missing"`
}

func (d Diagnostics) Clean() bool {
	return d.Errors == 0 && d.Missing == 0
}

type Parser struct {
	lang *tree_sitter.Language
}

func NewParser() *Parser {
	return &Parser{lang: tree_sitter.NewLanguage(tree_sitter_csharp.Language())}
}

func (p *Parser) Language() string {
	return "c_sharp"
}

func (p *Parser) Extensions() []string {
	return []string{".cs"}
}

func (p *Parser) Parse(path string, src []byte) (*syntax.Node, error) {
	root, _, err := p.ParseWithDiagnostics(path, src)
	return root, err
}

// ParseWithDiagnostics parses src and converts the result into a lossless
// syntax tree. Trees containing ERROR or MISSING nodes are still returned;
// the diagnostics tell the caller how many there were.
func (p *Parser) ParseWithDiagnostics(path string, src []byte) (*syntax.Node, Diagnostics, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.lang); err != nil {
		return nil, Diagnostics{}, fmt.Errorf("set c# language: %w", err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, Diagnostics{}, fmt.Errorf("%w: %s", ErrNoSyntaxTree, path)
	}
	defer tree.Close()

	rootNode := tree.RootNode()
	if rootNode == nil {
		return nil, Diagnostics{}, fmt.Errorf("%w: %s", ErrNoSyntaxTree, path)
	}

	c := &converter{src: src}
	root := c.convertRoot(rootNode)
	if root.FullText() != string(src) {
		return nil, c.diag, fmt.Errorf("%w: %s", ErrLossyTree, path)
	}
	return root, c.diag, nil
}

type converter struct {
	src  []byte
	pos  int
	diag Diagnostics
}

func (c *converter) convertRoot(node *tree_sitter.Node) *syntax.Node {
	children := c.convertChildren(node)
	eof := syntax.NewToken(syntax.KindToken, "end_of_file", c.take(len(c.src)), "", "", syntax.Span{Start: len(c.src), End: len(c.src)})
	children = append(children, eof)
	return syntax.NewNode(syntax.KindCompilationUnit, node.Kind(), syntax.Span{Start: 0, End: len(c.src)}, children...)
}

func (c *converter) convert(node *tree_sitter.Node) *syntax.Node {
	grammar := node.Kind()
	start, end := c.bounds(node)
	if node.IsError() {
		c.diag.Errors++
	}

	if node.ChildCount() == 0 {
		if node.IsMissing() {
			c.diag.Missing++
		}
		leading := c.take(start)
		text := string(c.src[start:end])
		c.pos = end
		return syntax.NewToken(tokenKind(grammar), grammar, leading, text, "", syntax.Span{Start: start, End: end})
	}

	children := c.convertChildren(node)
	if grammar == "variable_declarator" {
		children = groupInitializer(children)
	}
	return syntax.NewNode(nodeKind(grammar), grammar, syntax.Span{Start: start, End: end}, children...)
}

// convertChildren converts the children of node in order. Extras (comments,
// preprocessor directives) are not converted; their text is picked up as
// leading trivia of the next token.
func (c *converter) convertChildren(node *tree_sitter.Node) []*syntax.Node {
	count := node.ChildCount()
	children := make([]*syntax.Node, 0, count)
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child == nil || child.IsExtra() {
			continue
		}
		children = append(children, c.convert(child))
	}
	return children
}

// take returns the unconsumed source up to offset and advances past it.
func (c *converter) take(offset int) string {
	if offset <= c.pos {
		return ""
	}
	text := string(c.src[c.pos:offset])
	c.pos = offset
	return text
}

func (c *converter) bounds(node *tree_sitter.Node) (int, int) {
	start := int(node.StartByte())
	end := int(node.EndByte())
	if start < c.pos {
		start = c.pos
	}
	if end > len(c.src) {
		end = len(c.src)
	}
	if end < start {
		end = start
	}
	return start, end
}

// groupInitializer wraps "= value" of a declarator into an Initializer node.
// Older grammar revisions already produce an equals_value_clause.
func groupInitializer(children []*syntax.Node) []*syntax.Node {
	for i, child := range children {
		if child.Kind() == syntax.KindInitializer {
			return children
		}
		if child.IsToken() && child.TokenText() == "=" && i+1 < len(children) {
			span := syntax.Span{Start: child.Span().Start, End: children[len(children)-1].Span().End}
			init := syntax.NewNode(syntax.KindInitializer, "equals_value_clause", span, children[i:]...)
			return append(children[:i:i], init)
		}
	}
	return children
}

var nodeKinds = map[string]syntax.Kind{
	"local_declaration_statement":         syntax.KindLocalDeclaration,
	"variable_declaration":                syntax.KindVariableDeclaration,
	"variable_declarator":                 syntax.KindDeclarator,
	"equals_value_clause":                 syntax.KindInitializer,
	"ref_type":                            syntax.KindRefType,
	"ref_expression":                      syntax.KindRefExpression,
	"assignment_expression":               syntax.KindAssignment,
	"binary_expression":                   syntax.KindBinary,
	"object_creation_expression":          syntax.KindObjectCreation,
	"implicit_object_creation_expression": syntax.KindObjectCreation,
	"element_access_expression":           syntax.KindElementAccess,
	"expression_statement":                syntax.KindExpressionStatement,
	"block":                               syntax.KindStatement,
	"empty_statement":                     syntax.KindStatement,
}

func nodeKind(grammar string) syntax.Kind {
	if kind, ok := nodeKinds[grammar]; ok {
		return kind
	}
	if strings.HasSuffix(grammar, "_statement") {
		return syntax.KindStatement
	}
	return syntax.KindOther
}

func tokenKind(grammar string) syntax.Kind {
	if grammar == "null_literal" {
		return syntax.KindNullLiteral
	}
	return syntax.KindToken
}
