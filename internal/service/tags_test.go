package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/blog/internal/model"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"mixed case duplicates", "Tag1, tag1 TAG2", []string{"tag1", "tag2"}},
		{"empty", "", []string{}},
		{"only separators", " ,;#- ", []string{}},
		{"hash tags", "#go #GoLang", []string{"go", "golang"}},
		{"unicode letters", "Привет, café", []string{"привет", "café"}},
		{"digits kept", "v2 2024", []string{"v2", "2024"}},
		{"hyphen splits", "e-mail", []string{"e", "mail"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.TagNames(ParseTags(tt.raw)))
		})
	}
}
