package batch

import "sync/atomic"

// Progress is advanced once for every processed file.
type Progress interface {
	Add(n int)
}

// Counter is a Progress that only counts. It never goes backwards.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Add(n int) {
	if n > 0 {
		c.n.Add(int64(n))
	}
}

func (c *Counter) Value() int {
	return int(c.n.Load())
}

type noProgress struct{}

func (noProgress) Add(int) {}
