package batch

import (
	"strings"

	"github.com/zpam/spam-detect/pkg/apperr"
)

// Candidate header names in priority order.
var (
	TextColumns    = []string{"message", "text", "content", "body", "email"}
	SubjectColumns = []string{"subject", "title"}
	LabelColumns   = []string{"spam/ham", "spam", "label", "type"}
)

// Columns holds detected column positions; -1 means absent.
type Columns struct {
	Text    int
	Subject int
	Label   int
	Names   []string // normalized header names
}

// HasSubject reports whether a subject column was found
func (c Columns) HasSubject() bool { return c.Subject >= 0 }

// HasLabel reports whether a ground-truth column was found
func (c Columns) HasLabel() bool { return c.Label >= 0 }

// NormalizeHeader trims and lower-cases a column name.
func NormalizeHeader(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DetectColumns picks the text, subject and label columns. The first candidate
// present wins, regardless of column order in the file.
func DetectColumns(header []string) (Columns, error) {
	names := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		names[i] = NormalizeHeader(h)
		if _, dup := index[names[i]]; !dup {
			index[names[i]] = i
		}
	}

	find := func(candidates []string) int {
		for _, c := range candidates {
			if i, ok := index[c]; ok {
				return i
			}
		}
		return -1
	}

	cols := Columns{
		Text:    find(TextColumns),
		Subject: find(SubjectColumns),
		Label:   find(LabelColumns),
		Names:   names,
	}
	if cols.Text < 0 {
		return cols, apperr.NoTextColumn(names)
	}
	return cols, nil
}
