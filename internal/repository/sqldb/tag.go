package sqldb

import (
	"context"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

var _ repository.TagRepository = (*TagDB)(nil)

// TagDB stores tag names and the posts_tags associations.
type TagDB struct {
	q querier
}

// SaveTags makes sure every tag exists and links it to the post.
// Both inserts are insert-or-ignore, so calling it twice is harmless.
func (s *TagDB) SaveTags(ctx context.Context, tags []model.Tag, postID int64) error {
	names := uniqueNames(tags)
	if len(names) == 0 {
		return nil
	}

	for _, name := range names {
		if _, err := s.q.exec(ctx,
			`INSERT INTO tags (name) VALUES (?) ON CONFLICT (name) DO NOTHING`,
			name,
		); err != nil {
			return apperror.DataAccess("inserting tag "+name, err)
		}
	}

	args := make([]any, len(names))
	for i, name := range names {
		args[i] = name
	}
	rows, err := s.q.query(ctx,
		`SELECT id FROM tags WHERE name IN (`+placeholders(len(names))+`)`,
		args...,
	)
	if err != nil {
		return apperror.DataAccess("resolving tag ids", err)
	}
	tagIDs := make([]int64, 0, len(names))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return apperror.DataAccess("scanning tag id", err)
		}
		tagIDs = append(tagIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return apperror.DataAccess("iterating tag ids", err)
	}
	rows.Close()

	for _, tagID := range tagIDs {
		if _, err := s.q.exec(ctx,
			`INSERT INTO posts_tags (post_id, tag_id) VALUES (?, ?) ON CONFLICT (post_id, tag_id) DO NOTHING`,
			postID, tagID,
		); err != nil {
			return apperror.DataAccess("linking tag to post", err)
		}
	}
	return nil
}

// UpdateTags replaces the post's tag set.
func (s *TagDB) UpdateTags(ctx context.Context, tags []model.Tag, postID int64) error {
	if _, err := s.q.exec(ctx, `DELETE FROM posts_tags WHERE post_id = ?`, postID); err != nil {
		return apperror.DataAccess("clearing post tags", err)
	}
	return s.SaveTags(ctx, tags, postID)
}

func (s *TagDB) GetTagsByPostID(ctx context.Context, postID int64) ([]model.Tag, error) {
	rows, err := s.q.query(ctx,
		`SELECT t.id, t.name
		 FROM tags t
		 JOIN posts_tags pt ON t.id = pt.tag_id
		 WHERE pt.post_id = ?
		 ORDER BY t.id`,
		postID,
	)
	if err != nil {
		return nil, apperror.DataAccess("listing post tags", err)
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, apperror.DataAccess("scanning tag row", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.DataAccess("iterating tags", err)
	}
	return tags, nil
}

func uniqueNames(tags []model.Tag) []string {
	seen := make(map[string]struct{}, len(tags))
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Name == "" {
			continue
		}
		if _, ok := seen[t.Name]; ok {
			continue
		}
		seen[t.Name] = struct{}{}
		names = append(names, t.Name)
	}
	return names
}
