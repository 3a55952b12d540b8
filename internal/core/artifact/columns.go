package artifact

import (
	"fmt"
	"strings"

	"profilescraper/internal/core/model"
)

type setter func(*model.FlatRow, string)

var fieldSetters = map[string]setter{
	model.ColumnPostURL:         func(r *model.FlatRow, v string) { r.PostURL = v },
	model.ColumnPostContent:     func(r *model.FlatRow, v string) { r.PostContent = v },
	model.ColumnOCRText:         func(r *model.FlatRow, v string) { r.OCRText = v },
	model.ColumnCommentUsername: func(r *model.FlatRow, v string) { r.CommentUsername = v },
	model.ColumnCommentText:     func(r *model.FlatRow, v string) { r.CommentText = v },
}

// layout maps record positions to row fields. A nil entry is a column the
// artifact carries but the row type does not.
type layout []setter

// positional is the layout of inline-stream records, which carry no header.
func positional() layout {
	l := make(layout, len(model.Columns))
	for i, name := range model.Columns {
		l[i] = fieldSetters[name]
	}
	return l
}

// headerLayout builds a layout from a header record. Every canonical column
// must be present; unknown columns are ignored.
func headerLayout(header []string) (layout, error) {
	canonical := make(map[string]string, len(model.Columns))
	for _, name := range model.Columns {
		canonical[strings.ToLower(name)] = name
	}

	l := make(layout, len(header))
	seen := make(map[string]bool, len(model.Columns))
	for i, h := range header {
		name, ok := canonical[normalizeHeader(h)]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		l[i] = fieldSetters[name]
	}

	var missing []string
	for _, name := range model.Columns {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %q", missing)
	}
	return l, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

// row decodes one record. Short records pad with "" and fields beyond the
// layout are dropped.
func (l layout) row(record []string) model.FlatRow {
	var r model.FlatRow
	for i, set := range l {
		if set == nil {
			continue
		}
		var v string
		if i < len(record) {
			v = record[i]
		}
		set(&r, v)
	}
	return r
}

// blank reports a record with no fields at all, which spreadsheets yield for
// untouched rows. A record of empty fields is still a row.
func blank(record []string) bool {
	return len(record) == 0
}
