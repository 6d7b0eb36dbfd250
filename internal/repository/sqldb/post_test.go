package sqldb

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

// newTestDB opens a fresh in-memory SQLite database with the schema
// applied. Each test gets its own; it is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestPost(t *testing.T, db *DB, title string, tags ...string) *model.Post {
	t.Helper()
	ctx := context.Background()
	post := &model.Post{Title: title, Text: "some body text for " + title}
	if _, err := db.Posts().Create(ctx, post); err != nil {
		t.Fatalf("failed to create test post: %v", err)
	}
	if len(tags) > 0 {
		ts := make([]model.Tag, len(tags))
		for i, name := range tags {
			ts[i] = model.Tag{Name: name}
		}
		if err := db.Tags().SaveTags(ctx, ts, post.ID); err != nil {
			t.Fatalf("failed to tag test post: %v", err)
		}
	}
	return post
}

func strPtr(s string) *string { return &s }

// =========================================================================
// CREATE / GET
// =========================================================================

func TestPostCreate_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	post := &model.Post{
		Title:     "A title long enough",
		Text:      "Body text of the post",
		ImageData: []byte{0xff, 0xd8, 0xff},
	}
	id, err := db.Posts().Create(ctx, post)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, id, post.ID)

	got, err := db.Posts().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, post.Title, got.Title)
	assert.Equal(t, post.Text, got.Text)
	assert.Equal(t, post.ImageData, got.ImageData)
	assert.Equal(t, int64(0), got.LikesCount)
	assert.Nil(t, got.Tags)
	assert.Nil(t, got.Comments)
}

func TestPostGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Posts().GetByID(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestPostCreate_NoImageStoredAsNull(t *testing.T) {
	db := newTestDB(t)
	post := createTestPost(t, db, "no image here")

	data, err := db.Posts().FindImageDataByPostID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFindImageDataByPostID_MissingPost(t *testing.T) {
	db := newTestDB(t)

	data, err := db.Posts().FindImageDataByPostID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, data)
}

// =========================================================================
// UPDATE
// =========================================================================

func TestPostUpdate_PartialPatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	post := createTestPost(t, db, "original title", "go")

	existing, err := db.Posts().GetByID(ctx, post.ID)
	require.NoError(t, err)

	merged, err := db.Posts().Update(ctx, model.PostPatch{Title: strPtr("   "), Text: strPtr("replaced text")}, *existing)
	require.NoError(t, err)
	assert.Equal(t, "original title", merged.Title)
	assert.Equal(t, "replaced text", merged.Text)

	got, err := db.Posts().GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "original title", got.Title)
	assert.Equal(t, "replaced text", got.Text)

	// No tags in the patch, so the association survives.
	tags, err := db.Tags().GetTagsByPostID(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestPostUpdate_TagsInPatchClearAssociations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	post := createTestPost(t, db, "tagged post", "go", "sql")

	existing, err := db.Posts().GetByID(ctx, post.ID)
	require.NoError(t, err)

	_, err = db.Posts().Update(ctx, model.PostPatch{Tags: []model.Tag{{Name: "rust"}}}, *existing)
	require.NoError(t, err)

	tags, err := db.Tags().GetTagsByPostID(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestPostUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Posts().Update(context.Background(), model.PostPatch{Title: strPtr("new title")}, model.Post{ID: 77})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// =========================================================================
// RATING / DELETE
// =========================================================================

func TestUpdateRating(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	post := createTestPost(t, db, "rated post")

	post.LikesCount = -3
	require.NoError(t, db.Posts().UpdateRating(ctx, *post))

	got, err := db.Posts().GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), got.LikesCount)

	err = db.Posts().UpdateRating(ctx, model.Post{ID: 12345})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestPostDelete_CascadesJoinRowsAndComments(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	post := createTestPost(t, db, "doomed post", "go")
	other := createTestPost(t, db, "survivor post", "go")

	require.NoError(t, db.Comments().Create(ctx, &model.Comment{Text: "first comment"}, post.ID))
	require.NoError(t, db.Comments().Create(ctx, &model.Comment{Text: "kept comment"}, other.ID))

	require.NoError(t, db.Posts().Delete(ctx, post.ID))

	_, err := db.Posts().GetByID(ctx, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	var joinRows, comments int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM posts_tags WHERE post_id = ?`, post.ID).Scan(&joinRows))
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM comments`).Scan(&comments))
	assert.Equal(t, 0, joinRows)
	assert.Equal(t, 1, comments)

	// The shared tag still belongs to the other post.
	tags, err := db.Tags().GetTagsByPostID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, model.TagNames(tags))
}

func TestPostDelete_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Posts().Delete(context.Background(), 5)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// =========================================================================
// LISTING
// =========================================================================

func TestGetAllByParams_OrderAndHydration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	first := createTestPost(t, db, "first post", "go", "web")
	second := createTestPost(t, db, "second post")
	require.NoError(t, db.Comments().Create(ctx, &model.Comment{Text: "comment one"}, first.ID))
	require.NoError(t, db.Comments().Create(ctx, &model.Comment{Text: "comment two"}, first.ID))

	posts, err := db.Posts().GetAllByParams(ctx, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, first.ID, posts[1].ID)

	assert.NotNil(t, posts[0].Tags)
	assert.Empty(t, posts[0].Tags)
	assert.NotNil(t, posts[0].Comments)
	assert.Empty(t, posts[0].Comments)

	assert.Equal(t, []string{"go", "web"}, model.TagNames(posts[1].Tags))
	require.Len(t, posts[1].Comments, 2)
	assert.Equal(t, "comment one", posts[1].Comments[0].Text)
	assert.Equal(t, "comment two", posts[1].Comments[1].Text)
}

func TestGetAllByParams_Search(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	both := createTestPost(t, db, "golang and gopher", "golang", "gopher")
	createTestPost(t, db, "rust only post", "rust")
	createTestPost(t, db, "untagged post")

	tests := []struct {
		name   string
		search string
		want   []int64
	}{
		{"substring matches once per post", "go", []int64{both.ID}},
		{"case insensitive", "GoLang", []int64{both.ID}},
		{"no match", "python", nil},
		{"percent is literal", "%", nil},
		{"underscore is literal", "_", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := db.Posts().GetAllByParams(ctx, repository.ListOptions{Search: tt.search, Limit: 10})
			require.NoError(t, err)
			var ids []int64
			for _, p := range posts {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetAllByParams_Window(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		createTestPost(t, db, fmt.Sprintf("post number %d", i))
	}

	page, err := db.Posts().GetAllByParams(ctx, repository.ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "post number 3", page[0].Title)
	assert.Equal(t, "post number 2", page[1].Title)

	empty, err := db.Posts().GetAllByParams(ctx, repository.ListOptions{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHasNextPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		createTestPost(t, db, fmt.Sprintf("tagged post %d", i), "news")
	}
	createTestPost(t, db, "plain post")

	tests := []struct {
		name string
		opts repository.ListOptions
		want bool
	}{
		{"rows remain after offset", repository.ListOptions{Limit: 2, Offset: 4}, true},
		{"offset equals total", repository.ListOptions{Limit: 2, Offset: 6}, false},
		{"filtered rows remain", repository.ListOptions{Search: "new", Limit: 2, Offset: 4}, true},
		{"filtered offset equals total", repository.ListOptions{Search: "new", Limit: 2, Offset: 5}, false},
		{"no match", repository.ListOptions{Search: "zzz", Limit: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Posts().HasNextPage(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
