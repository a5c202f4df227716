package sema

// ScopeKind classifies the type of lexical scope.
type ScopeKind int

const (
	ScopeFile ScopeKind = iota
	ScopeFunction
	ScopeLambda
	ScopeBlock
)

// DefKind constants classify the type of a definition.
const (
	DefLocal    = "local"
	DefParam    = "param"
	DefFunction = "function"
)

// Definition is a named symbol introduced into a scope.
type Definition struct {
	Name string
	Kind string // one of the Def* constants
	Type string // resolved type, or "" when unknown
}

// Scope is one lexical scope of a method body. Members and types are not
// scoped here; they are looked up in the Index.
type Scope struct {
	Kind   ScopeKind
	Parent *Scope
	Defs   []Definition
}

// NewScope creates a scope nested in parent. If parent is nil, the scope is a root.
func NewScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{Kind: kind, Parent: parent}
}

// Define adds a definition. A later definition with the same name shadows
// the earlier one.
func (s *Scope) Define(def Definition) {
	s.Defs = append(s.Defs, def)
}

// Lookup searches for a name starting at s, walking up to parents.
func (s *Scope) Lookup(name string) (*Definition, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if d := lookupInScope(name, cur); d != nil {
			return d, true
		}
	}
	return nil, false
}

// lookupInScope searches a single scope, newest definition first.
func lookupInScope(name string, s *Scope) *Definition {
	for i := len(s.Defs) - 1; i >= 0; i-- {
		if s.Defs[i].Name == name {
			return &s.Defs[i]
		}
	}
	return nil
}
