package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/events"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore keeps posts, tags and comments in maps and implements
// repository.Store. WithTx snapshots the maps and restores them when the
// callback fails, which is enough to observe rollback behaviour.

type fakeStore struct {
	posts    map[int64]model.Post
	postTags map[int64][]model.Tag
	comments map[int64][]model.Comment // by post id
	nextID   int64

	failSaveTags error
	txCount      int
	rollbacks    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts:    make(map[int64]model.Post),
		postTags: make(map[int64][]model.Tag),
		comments: make(map[int64][]model.Comment),
	}
}

var _ repository.Store = (*fakeStore)(nil)

func (f *fakeStore) Posts() repository.PostRepository       { return fakePosts{f} }
func (f *fakeStore) Tags() repository.TagRepository         { return fakeTags{f} }
func (f *fakeStore) Comments() repository.CommentRepository { return fakeComments{f} }

func (f *fakeStore) WithTx(_ context.Context, fn func(repository.Stores) error) error {
	f.txCount++
	snap := f.snapshot()
	if err := fn(f); err != nil {
		f.posts, f.postTags, f.comments = snap.posts, snap.postTags, snap.comments
		f.rollbacks++
		return err
	}
	return nil
}

func (f *fakeStore) snapshot() *fakeStore {
	s := newFakeStore()
	for k, v := range f.posts {
		s.posts[k] = v
	}
	for k, v := range f.postTags {
		s.postTags[k] = append([]model.Tag(nil), v...)
	}
	for k, v := range f.comments {
		s.comments[k] = append([]model.Comment(nil), v...)
	}
	return s
}

func (f *fakeStore) commentCount() int {
	n := 0
	for _, cs := range f.comments {
		n += len(cs)
	}
	return n
}

type fakePosts struct{ f *fakeStore }

func (r fakePosts) Create(_ context.Context, post *model.Post) (int64, error) {
	r.f.nextID++
	post.ID = r.f.nextID
	stored := *post
	stored.Tags, stored.Comments = nil, nil
	r.f.posts[post.ID] = stored
	return post.ID, nil
}

func (r fakePosts) Update(_ context.Context, patch model.PostPatch, existing model.Post) (model.Post, error) {
	if _, ok := r.f.posts[existing.ID]; !ok {
		return model.Post{}, apperror.NotFound("post", existing.ID)
	}
	merged := patch.Apply(existing)
	stored := merged
	stored.Tags, stored.Comments = nil, nil
	r.f.posts[merged.ID] = stored
	if patch.HasTags() {
		delete(r.f.postTags, merged.ID)
	}
	return merged, nil
}

func (r fakePosts) GetByID(_ context.Context, id int64) (*model.Post, error) {
	p, ok := r.f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	return &p, nil
}

func (r fakePosts) Delete(_ context.Context, id int64) error {
	if _, ok := r.f.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(r.f.posts, id)
	delete(r.f.postTags, id)
	delete(r.f.comments, id)
	return nil
}

func (r fakePosts) UpdateRating(_ context.Context, post model.Post) error {
	p, ok := r.f.posts[post.ID]
	if !ok {
		return apperror.NotFound("post", post.ID)
	}
	p.LikesCount = post.LikesCount
	r.f.posts[post.ID] = p
	return nil
}

func (r fakePosts) matching(search string) []int64 {
	search = strings.ToLower(strings.TrimSpace(search))
	var ids []int64
	for id := range r.f.posts {
		if search == "" {
			ids = append(ids, id)
			continue
		}
		for _, t := range r.f.postTags[id] {
			if strings.Contains(strings.ToLower(t.Name), search) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids
}

func (r fakePosts) GetAllByParams(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	ids := r.matching(opts.Search)
	if opts.Offset >= len(ids) {
		return []model.Post{}, nil
	}
	ids = ids[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(ids) {
		ids = ids[:opts.Limit]
	}
	posts := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		p := r.f.posts[id]
		p.Tags = append([]model.Tag{}, r.f.postTags[id]...)
		p.Comments = append([]model.Comment{}, r.f.comments[id]...)
		posts = append(posts, p)
	}
	return posts, nil
}

func (r fakePosts) HasNextPage(_ context.Context, opts repository.ListOptions) (bool, error) {
	return len(r.matching(opts.Search)) > opts.Offset, nil
}

func (r fakePosts) FindImageDataByPostID(_ context.Context, id int64) ([]byte, error) {
	return r.f.posts[id].ImageData, nil
}

type fakeTags struct{ f *fakeStore }

func (r fakeTags) SaveTags(_ context.Context, tags []model.Tag, postID int64) error {
	if r.f.failSaveTags != nil {
		return r.f.failSaveTags
	}
	for _, t := range tags {
		dup := false
		for _, have := range r.f.postTags[postID] {
			if have.Name == t.Name {
				dup = true
				break
			}
		}
		if !dup {
			r.f.postTags[postID] = append(r.f.postTags[postID], model.Tag{ID: int64(len(r.f.postTags[postID]) + 1), Name: t.Name})
		}
	}
	return nil
}

func (r fakeTags) UpdateTags(ctx context.Context, tags []model.Tag, postID int64) error {
	delete(r.f.postTags, postID)
	return r.SaveTags(ctx, tags, postID)
}

func (r fakeTags) GetTagsByPostID(_ context.Context, postID int64) ([]model.Tag, error) {
	return append([]model.Tag{}, r.f.postTags[postID]...), nil
}

type fakeComments struct{ f *fakeStore }

func (r fakeComments) Create(_ context.Context, comment *model.Comment, postID int64) error {
	if _, ok := r.f.posts[postID]; !ok {
		return apperror.DataAccess("linking comment to post", errors.New("FOREIGN KEY constraint failed"))
	}
	r.f.nextID++
	comment.ID = r.f.nextID
	r.f.comments[postID] = append(r.f.comments[postID], *comment)
	return nil
}

func (r fakeComments) Update(_ context.Context, existing model.Comment, patch model.CommentPatch) (model.Comment, error) {
	merged := patch.Apply(existing)
	for postID, cs := range r.f.comments {
		for i, c := range cs {
			if c.ID == existing.ID {
				r.f.comments[postID][i] = merged
				return merged, nil
			}
		}
	}
	return model.Comment{}, apperror.NotFound("comment", existing.ID)
}

func (r fakeComments) GetAllByPostID(_ context.Context, postID int64) ([]model.Comment, error) {
	return append([]model.Comment{}, r.f.comments[postID]...), nil
}

func (r fakeComments) Delete(_ context.Context, id int64) error {
	for postID, cs := range r.f.comments {
		for i, c := range cs {
			if c.ID == id {
				r.f.comments[postID] = append(cs[:i:i], cs[i+1:]...)
				return nil
			}
		}
	}
	return apperror.NotFound("comment", id)
}

// =========================================================================
// FAKE CACHE AND PUBLISHER
// =========================================================================

type fakeCache struct {
	entries map[int64]model.Post
	hits    int
	err     error // returned by every call when set
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[int64]model.Post)}
}

func (c *fakeCache) Get(_ context.Context, id int64) (*model.Post, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	p, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &p, true, nil
}

func (c *fakeCache) Set(_ context.Context, post model.Post) error {
	if c.err != nil {
		return c.err
	}
	c.entries[post.ID] = post
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id int64) error {
	if c.err != nil {
		return c.err
	}
	delete(c.entries, id)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// =========================================================================
// TEST HELPERS
// =========================================================================

type testEnv struct {
	store     *fakeStore
	cache     *fakeCache
	publisher *recordingPublisher
	posts     *PostService
	comments  *CommentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		store:     newFakeStore(),
		cache:     newFakeCache(),
		publisher: &recordingPublisher{},
	}
	env.posts = NewPostService(env.store, env.cache, env.publisher, logger)
	env.comments = NewCommentService(env.store, env.posts, logger)
	return env
}

func (e *testEnv) createPost(t *testing.T, title, tags string) int64 {
	t.Helper()
	id, err := e.posts.Create(context.Background(), PostInput{
		Title: title,
		Text:  "text of " + title,
		Tags:  tags,
	})
	if err != nil {
		t.Fatalf("failed to create test post: %v", err)
	}
	return id
}
