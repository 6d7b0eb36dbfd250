// Package model defines the data structures used throughout the application.
package model

import "strings"

// Post is a blog entry together with its tags and comments.
//
// Tags and Comments are only populated by the operations that hydrate them
// (the post aggregate and the listing); a bare row fetch leaves them nil.
type Post struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	ImageData  []byte    `json:"imageData,omitempty"`
	LikesCount int64     `json:"likesCount"`
	Tags       []Tag     `json:"tags"`
	Comments   []Comment `json:"comments"`
}

// FindComment returns the comment with the given id, if the post owns it.
func (p Post) FindComment(id int64) (Comment, bool) {
	for _, c := range p.Comments {
		if c.ID == id {
			return c, true
		}
	}
	return Comment{}, false
}

// PostPatch carries the optional fields of a partial post update.
// A nil or blank Title/Text, an empty Image and empty Tags mean "keep".
type PostPatch struct {
	Title *string
	Text  *string
	Image []byte
	Tags  []Tag
}

// HasTags reports whether the patch replaces the post's tags.
func (p PostPatch) HasTags() bool {
	return len(p.Tags) > 0
}

// Apply merges the patch onto existing and returns the result.
// existing is not modified.
func (p PostPatch) Apply(existing Post) Post {
	merged := existing
	if notBlank(p.Title) {
		merged.Title = *p.Title
	}
	if notBlank(p.Text) {
		merged.Text = *p.Text
	}
	if len(p.Image) > 0 {
		merged.ImageData = append([]byte(nil), p.Image...)
	}
	if p.HasTags() {
		merged.Tags = append([]Tag(nil), p.Tags...)
	}
	return merged
}

func notBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
