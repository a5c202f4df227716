package syntax

// WithChildren returns a copy of n with its children replaced. Kind, grammar
// and span are kept, so a rebuilt parent still answers oracle lookups made
// against the original.
func (n *Node) WithChildren(children ...*Node) *Node {
	if n.token {
		return n
	}
	return NewNode(n.kind, n.grammar, n.span, children...)
}

// WithChild returns a copy of n with child i replaced.
func (n *Node) WithChild(i int, child *Node) *Node {
	if i < 0 || i >= len(n.children) || n.children[i] == child {
		return n
	}
	children := n.Children()
	children[i] = child
	return n.WithChildren(children...)
}

// WithLeadingTrivia replaces the leading trivia of the first token, copying
// only the path from n down to that token.
func (n *Node) WithLeadingTrivia(trivia string) *Node {
	if n.token {
		if n.leading == trivia {
			return n
		}
		out := *n
		out.leading = trivia
		return &out
	}
	if len(n.children) == 0 {
		return n
	}
	return n.WithChild(0, n.children[0].WithLeadingTrivia(trivia))
}

// WithTrailingTrivia replaces the trailing trivia of the last token.
func (n *Node) WithTrailingTrivia(trivia string) *Node {
	if n.token {
		if n.trailing == trivia {
			return n
		}
		out := *n
		out.trailing = trivia
		return &out
	}
	if len(n.children) == 0 {
		return n
	}
	last := len(n.children) - 1
	return n.WithChild(last, n.children[last].WithTrailingTrivia(trivia))
}

func (n *Node) WithoutTrivia() *Node {
	return n.WithLeadingTrivia("").WithTrailingTrivia("")
}

// Detach deep-copies n with every span cleared. Generated code that repeats
// existing syntax uses it so that no node has two parents.
func (n *Node) Detach() *Node {
	if n.token {
		out := *n
		out.span = NoSpan
		return &out
	}
	children := make([]*Node, len(n.children))
	for i, child := range n.children {
		children[i] = child.Detach()
	}
	return NewNode(n.kind, n.grammar, NoSpan, children...)
}

// Inspect traverses the tree in pre-order. Returning false from fn skips
// the node's children.
func Inspect(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.children {
		Inspect(child, fn)
	}
}

// ChildIndex returns the index of the first child of the given kind, or -1.
func (n *Node) ChildIndex(kind Kind) int {
	for i, child := range n.children {
		if child.kind == kind {
			return i
		}
	}
	return -1
}

// ChildByGrammar returns the first child with the given grammar name.
func (n *Node) ChildByGrammar(grammar string) *Node {
	for _, child := range n.children {
		if child.grammar == grammar {
			return child
		}
	}
	return nil
}

// ChildrenByGrammar returns every child with the given grammar name.
func (n *Node) ChildrenByGrammar(grammar string) []*Node {
	var out []*Node
	for _, child := range n.children {
		if child.grammar == grammar {
			out = append(out, child)
		}
	}
	return out
}
