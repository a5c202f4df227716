package syntax

import "sort"

// Lines maps byte offsets of a source text to 1-based line and column.
type Lines struct {
	starts []int
}

func NewLines(src []byte) *Lines {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Lines{starts: starts}
}

// Position returns the line and byte column of offset. Offsets outside the
// source are clamped.
func (l *Lines) Position(offset int) (line, column int) {
	if offset < 0 {
		offset = 0
	}
	i := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - l.starts[i] + 1
}
