package service

import (
	"strings"
	"unicode"

	"github.com/sakif/blog/internal/model"
)

// ParseTags turns free text into tags. Any run of characters that are not
// letters or digits separates tags; names are lower-cased and duplicates
// dropped, keeping first-seen order.
//
//	ParseTags("Tag1, tag1 TAG2") // tag1, tag2
func ParseTags(raw string) []model.Tag {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tags := make([]model.Tag, 0, len(fields))
	for _, f := range fields {
		name := strings.ToLower(f)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tags = append(tags, model.Tag{Name: name})
	}
	return tags
}
