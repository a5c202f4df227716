// Package lang defines the Parser interface for turning source files into lossless syntax trees.
package lang

import "github.com/odvcencio/tileref/pkg/syntax"

// Parser converts source files into syntax trees.
type Parser interface {
	// Language returns the name of the language this parser handles.
	Language() string
	// Extensions lists the file extensions the parser accepts, with the leading dot.
	Extensions() []string
	// Parse returns the compilation unit for src. The tree's full text must equal src.
	Parse(path string, src []byte) (*syntax.Node, error)
}
