package model

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

const textPreviewLimit = 200

// PostView is the read model rendered by the templates.
type PostView struct {
	ID          int64
	Title       string
	Text        string
	ImageBase64 string
	LikesCount  int64
	Tags        []string
	Comments    []CommentView
}

type CommentView struct {
	ID   int64
	Text string
}

// NewPostView flattens a hydrated post for rendering.
func NewPostView(p Post) PostView {
	v := PostView{
		ID:         p.ID,
		Title:      p.Title,
		Text:       p.Text,
		LikesCount: p.LikesCount,
		Tags:       TagNames(p.Tags),
		Comments:   make([]CommentView, 0, len(p.Comments)),
	}
	if len(p.ImageData) > 0 {
		v.ImageBase64 = base64.StdEncoding.EncodeToString(p.ImageData)
	}
	for _, c := range p.Comments {
		v.Comments = append(v.Comments, CommentView{ID: c.ID, Text: c.Text})
	}
	return v
}

func (v PostView) HasImage() bool {
	return v.ImageBase64 != ""
}

// TagsLine joins tag names with spaces, the format the edit form accepts.
func (v PostView) TagsLine() string {
	return strings.Join(v.Tags, " ")
}

// TextPreview returns the first 200 characters of the text, with an
// ellipsis when it was cut.
func (v PostView) TextPreview() string {
	if utf8.RuneCountInString(v.Text) <= textPreviewLimit {
		return v.Text
	}
	runes := []rune(v.Text)
	return string(runes[:textPreviewLimit]) + "..."
}

// TextParts splits the text into paragraphs on newlines.
func (v PostView) TextParts() []string {
	if strings.TrimSpace(v.Text) == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(v.Text, "\r\n", "\n"), "\n")
}
