package model

// Comment is free text attached to exactly one post.
type Comment struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// CommentPatch carries the optional text of a comment update.
type CommentPatch struct {
	Text *string
}

// Apply returns existing with its text replaced when the patch text is
// non-blank.
func (p CommentPatch) Apply(existing Comment) Comment {
	merged := existing
	if notBlank(p.Text) {
		merged.Text = *p.Text
	}
	return merged
}
