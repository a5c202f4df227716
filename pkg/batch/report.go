package batch

import (
	"sort"

	"github.com/odvcencio/tileref/pkg/rewrite"
)

type Report struct {
	FilesProcessed int            `json:"files_processed"`
	FilesChanged   int            `json:"files_changed"`
	Rules          map[string]int `json:"rules"`
	Files          []FileReport   `json:"files,omitempty"`
}

type FileReport struct {
	Path    string         `json:"path"`
	Changes []ChangeReport `json:"changes"`
}

type ChangeReport struct {
	Rule    string `json:"rule"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Flagged bool   `json:"flagged,omitempty"`
}

// Reviews counts the statements disabled and the assignments marked for
// manual review.
func (r Report) Reviews() int {
	return r.Rules[rewrite.RuleReview]
}

func mergeReports(reports []Report) Report {
	out := Report{Rules: map[string]int{}}
	for _, rep := range reports {
		out.FilesProcessed += rep.FilesProcessed
		out.FilesChanged += rep.FilesChanged
		for rule, n := range rep.Rules {
			out.Rules[rule] += n
		}
		out.Files = append(out.Files, rep.Files...)
	}
	sort.Slice(out.Files, func(i, j int) bool {
		return out.Files[i].Path < out.Files[j].Path
	})
	return out
}
