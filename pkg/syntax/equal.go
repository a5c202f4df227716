package syntax

// Equivalent reports whether a and b are structurally equal: same kinds,
// grammar names, token text and trivia, in the same order. Shared subtrees
// are recognized by identity without descending into them.
func Equivalent(a, b *Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.kind != b.kind || a.grammar != b.grammar || a.token != b.token {
		return false
	}
	if a.token {
		return a.leading == b.leading && a.text == b.text && a.trailing == b.trailing
	}
	if len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !Equivalent(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
