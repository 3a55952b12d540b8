package model

import "time"

// Column names as they appear in artifact headers, in positional order for
// inline-stream artifacts.
const (
	ColumnPostURL         = "Post URL"
	ColumnPostContent     = "Post Content"
	ColumnOCRText         = "OCR Text"
	ColumnCommentUsername = "Comment Username"
	ColumnCommentText     = "Comment Text"
)

// Columns is the canonical column order.
var Columns = []string{
	ColumnPostURL,
	ColumnPostContent,
	ColumnOCRText,
	ColumnCommentUsername,
	ColumnCommentText,
}

// FlatRow is one decoded artifact record, before grouping.
type FlatRow struct {
	PostURL         string
	PostContent     string
	OCRText         string
	CommentUsername string
	CommentText     string
}

// Key returns the composite identity of the post the row belongs to.
func (r FlatRow) Key() PostKey {
	return PostKey{URL: r.PostURL, Content: r.PostContent, OCRText: r.OCRText}
}

// PostKey identifies one logical post across many comment rows.
type PostKey struct {
	URL     string
	Content string
	OCRText string
}

type Comment struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// PostRecord is the normalized unit returned to clients.
type PostRecord struct {
	URL      string    `json:"url"`
	Content  string    `json:"content"`
	OCRText  string    `json:"ocr_text"`
	Comments []Comment `json:"comments"`
}

func (p PostRecord) Key() PostKey {
	return PostKey{URL: p.URL, Content: p.Content, OCRText: p.OCRText}
}

// ProfilePosts is the document persisted per profile.
type ProfilePosts struct {
	Profile   string       `json:"profile"`
	Posts     []PostRecord `json:"posts"`
	ScrapedAt time.Time    `json:"scraped_at"`
}
