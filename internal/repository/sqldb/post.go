package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

var _ repository.PostRepository = (*PostDB)(nil)

const defaultListLimit = 10

// PostDB stores post rows and runs the listing queries.
type PostDB struct {
	q querier
}

// Create inserts the post and returns its generated ID.
// Tags and comments are not written here.
func (s *PostDB) Create(ctx context.Context, post *model.Post) (int64, error) {
	var id int64
	err := s.q.queryRow(ctx,
		`INSERT INTO posts (title, text, image_data, likes_count)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`,
		post.Title, post.Text, nullBytes(post.ImageData), post.LikesCount,
	).Scan(&id)
	if err != nil {
		return 0, apperror.DataAccess("creating post", err)
	}
	post.ID = id
	return id, nil
}

// Update merges patch onto existing and persists title, text and image.
// When the patch replaces tags the old associations are removed; linking
// the new ones is left to the tag store.
func (s *PostDB) Update(ctx context.Context, patch model.PostPatch, existing model.Post) (model.Post, error) {
	merged := patch.Apply(existing)

	result, err := s.q.exec(ctx,
		`UPDATE posts SET title = ?, text = ?, image_data = ? WHERE id = ?`,
		merged.Title, merged.Text, nullBytes(merged.ImageData), merged.ID,
	)
	if err != nil {
		return model.Post{}, apperror.DataAccess("updating post", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.Post{}, apperror.DataAccess("checking rows affected", err)
	}
	if n == 0 {
		return model.Post{}, apperror.NotFound("post", merged.ID)
	}

	if patch.HasTags() {
		if _, err := s.q.exec(ctx, `DELETE FROM posts_tags WHERE post_id = ?`, merged.ID); err != nil {
			return model.Post{}, apperror.DataAccess("clearing post tags", err)
		}
	}
	return merged, nil
}

// GetByID returns the bare post row. Tags and Comments stay nil.
func (s *PostDB) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	p := &model.Post{}
	err := s.q.queryRow(ctx,
		`SELECT id, title, text, image_data, likes_count FROM posts WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Title, &p.Text, &p.ImageData, &p.LikesCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("post", id)
	}
	if err != nil {
		return nil, apperror.DataAccess("getting post", err)
	}
	return p, nil
}

// Delete removes the post and the comments that belong to it. The join
// rows cascade.
func (s *PostDB) Delete(ctx context.Context, id int64) error {
	if _, err := s.q.exec(ctx,
		`DELETE FROM comments
		 WHERE id IN (SELECT comment_id FROM posts_comments WHERE post_id = ?)`,
		id,
	); err != nil {
		return apperror.DataAccess("deleting post comments", err)
	}

	result, err := s.q.exec(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return apperror.DataAccess("deleting post", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.DataAccess("checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}

// UpdateRating persists post.LikesCount.
func (s *PostDB) UpdateRating(ctx context.Context, post model.Post) error {
	result, err := s.q.exec(ctx,
		`UPDATE posts SET likes_count = ? WHERE id = ?`,
		post.LikesCount, post.ID,
	)
	if err != nil {
		return apperror.DataAccess("updating rating", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.DataAccess("checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound("post", post.ID)
	}
	return nil
}

// GetAllByParams returns one page of posts, newest first, with tags and
// comments hydrated.
//
// HYDRATION:
// The page is loaded with one query, then tags and comments for every post
// on the page are loaded with one IN (...) query each. A page therefore
// costs three queries no matter how many posts it holds.
//
// SEARCH:
// A non-empty search keeps posts having at least one tag whose name
// contains it. The tag match sits in a subquery so a post with several
// matching tags is still returned once.
func (s *PostDB) GetAllByParams(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	limit, offset := normalizeWindow(opts)
	where, args := searchFilter(opts.Search)

	rows, err := s.q.query(ctx,
		`SELECT p.id, p.title, p.text, p.image_data, p.likes_count
		 FROM posts p`+where+`
		 ORDER BY p.id DESC
		 LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, apperror.DataAccess("listing posts", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		p := model.Post{Tags: []model.Tag{}, Comments: []model.Comment{}}
		if err := rows.Scan(&p.ID, &p.Title, &p.Text, &p.ImageData, &p.LikesCount); err != nil {
			return nil, apperror.DataAccess("scanning post row", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.DataAccess("iterating posts", err)
	}
	rows.Close()

	if len(posts) == 0 {
		return posts, nil
	}
	if err := s.hydrate(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// HasNextPage reports whether any matching post exists at or after offset.
func (s *PostDB) HasNextPage(ctx context.Context, opts repository.ListOptions) (bool, error) {
	limit, offset := normalizeWindow(opts)
	where, args := searchFilter(opts.Search)

	rows, err := s.q.query(ctx,
		`SELECT p.id FROM posts p`+where+`
		 ORDER BY p.id DESC
		 LIMIT ? OFFSET ?`,
		append(args, limit+1, offset)...,
	)
	if err != nil {
		return false, apperror.DataAccess("probing next page", err)
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, apperror.DataAccess("probing next page", err)
	}
	return found, nil
}

// FindImageDataByPostID returns the stored image, or nil when the post has
// none or does not exist.
func (s *PostDB) FindImageDataByPostID(ctx context.Context, id int64) ([]byte, error) {
	var data []byte
	err := s.q.queryRow(ctx, `SELECT image_data FROM posts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.DataAccess("reading image data", err)
	}
	return data, nil
}

// hydrate fills Tags and Comments of every post in place.
func (s *PostDB) hydrate(ctx context.Context, posts []model.Post) error {
	index := make(map[int64]int, len(posts))
	ids := make([]any, len(posts))
	for i, p := range posts {
		index[p.ID] = i
		ids[i] = p.ID
	}
	in := placeholders(len(ids))

	tagRows, err := s.q.query(ctx,
		`SELECT pt.post_id, t.id, t.name
		 FROM posts_tags pt
		 JOIN tags t ON t.id = pt.tag_id
		 WHERE pt.post_id IN (`+in+`)
		 ORDER BY t.id`,
		ids...,
	)
	if err != nil {
		return apperror.DataAccess("loading page tags", err)
	}
	for tagRows.Next() {
		var postID int64
		var t model.Tag
		if err := tagRows.Scan(&postID, &t.ID, &t.Name); err != nil {
			tagRows.Close()
			return apperror.DataAccess("scanning page tag", err)
		}
		if i, ok := index[postID]; ok {
			posts[i].Tags = append(posts[i].Tags, t)
		}
	}
	if err := tagRows.Err(); err != nil {
		tagRows.Close()
		return apperror.DataAccess("iterating page tags", err)
	}
	tagRows.Close()

	commentRows, err := s.q.query(ctx,
		`SELECT pc.post_id, c.id, c.text
		 FROM posts_comments pc
		 JOIN comments c ON c.id = pc.comment_id
		 WHERE pc.post_id IN (`+in+`)
		 ORDER BY c.id`,
		ids...,
	)
	if err != nil {
		return apperror.DataAccess("loading page comments", err)
	}
	defer commentRows.Close()
	for commentRows.Next() {
		var postID int64
		var c model.Comment
		if err := commentRows.Scan(&postID, &c.ID, &c.Text); err != nil {
			return apperror.DataAccess("scanning page comment", err)
		}
		if i, ok := index[postID]; ok {
			posts[i].Comments = append(posts[i].Comments, c)
		}
	}
	if err := commentRows.Err(); err != nil {
		return apperror.DataAccess("iterating page comments", err)
	}
	return nil
}

// searchFilter returns the WHERE clause and its arguments for a tag
// substring search. An empty search matches every post.
func searchFilter(search string) (string, []any) {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return "", nil
	}
	return `
		 WHERE p.id IN (
		   SELECT pt.post_id
		   FROM posts_tags pt
		   JOIN tags t ON t.id = pt.tag_id
		   WHERE LOWER(t.name) LIKE ? ESCAPE '\'
		 )`, []any{"%" + escapeLike(search) + "%"}
}

func normalizeWindow(opts repository.ListOptions) (limit, offset int) {
	limit, offset = opts.Limit, opts.Offset
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// nullBytes stores an empty image as NULL rather than a zero-length blob.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
