package model

// Tag is a normalized label shared between posts.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TagNames flattens tags to their names, keeping order.
func TagNames(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}
