// Package posts collapses flat artifact rows into post records.
package posts

import "profilescraper/internal/core/model"

// Aggregate groups rows by their (url, content, ocr text) key. Output order is
// the first-seen order of keys; comment order is row order within a key. Rows
// with empty comment fields still contribute an (empty) comment.
func Aggregate(rows []model.FlatRow) []model.PostRecord {
	out := make([]model.PostRecord, 0, len(rows))
	index := make(map[model.PostKey]int, len(rows))

	for _, row := range rows {
		comment := model.Comment{Username: row.CommentUsername, Text: row.CommentText}
		key := row.Key()
		if i, ok := index[key]; ok {
			out[i].Comments = append(out[i].Comments, comment)
			continue
		}
		index[key] = len(out)
		out = append(out, model.PostRecord{
			URL:      row.PostURL,
			Content:  row.PostContent,
			OCRText:  row.OCRText,
			Comments: []model.Comment{comment},
		})
	}
	return out
}
