package rules

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Category is a named keyword rule mapping matching files to a target
// subdirectory below a disk's sorted root.
type Category struct {
	ID        int64    `json:"id,omitempty"`
	Name      string   `json:"name"`
	Priority  int      `json:"priority"`
	TargetDir string   `json:"target_dir"`
	Keywords  []string `json:"keywords"`
}

var folder = cases.Fold()

// Match maps a file name onto at most one category. Categories are evaluated
// by priority descending; ties keep the given (definition) order. A category
// matches when any of its keywords occurs as a case-folded substring of the
// base file name. Matching is not cumulative: the first hit wins.
//
// Match is pure: it never mutates its inputs and identical inputs always
// produce the identical result.
func Match(fileName string, categories []Category) *Category {
	if fileName == "" || len(categories) == 0 {
		return nil
	}

	ordered := make([]*Category, len(categories))
	for i := range categories {
		ordered[i] = &categories[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	folded := folder.String(fileName)
	for _, cat := range ordered {
		for _, keyword := range cat.Keywords {
			keyword = strings.TrimSpace(keyword)
			if keyword == "" {
				continue
			}
			if strings.Contains(folded, folder.String(keyword)) {
				return cat
			}
		}
	}
	return nil
}
