// Package service contains the business logic of the blog.
//
// Handlers call services with plain values (ids, strings, bytes); services
// call the stores and decide where transactions begin and end. Nothing in
// this package knows about HTTP.
//
// WRITES:
// Every write that touches more than one table runs inside Store.WithTx, so
// a post is never visible without its tags and a comment never exists
// without its link row. Side effects that cannot be rolled back (cache
// invalidation, event publishing) happen after the transaction commits.
//
// CACHING:
// GetByID is cache-aside. Any write to a post or its comments removes the
// cached entry. Cache and broker failures are logged and swallowed.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/blog/internal/cache"
	"github.com/sakif/blog/internal/events"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PostCache holds hydrated posts keyed by id.
type PostCache interface {
	Get(ctx context.Context, id int64) (*model.Post, bool, error)
	Set(ctx context.Context, post model.Post) error
	Invalidate(ctx context.Context, id int64) error
}

// PostInput is what a create or update form submits. Tags is the raw
// free-text tag field; Image is nil when no file was uploaded.
type PostInput struct {
	Title string
	Text  string
	Image []byte
	Tags  string
}

// patch turns the input into a partial update: blank fields mean "keep".
func (in PostInput) patch() model.PostPatch {
	var p model.PostPatch
	if strings.TrimSpace(in.Title) != "" {
		title := in.Title
		p.Title = &title
	}
	if strings.TrimSpace(in.Text) != "" {
		text := in.Text
		p.Text = &text
	}
	if len(in.Image) > 0 {
		p.Image = in.Image
	}
	p.Tags = ParseTags(in.Tags)
	return p
}

type PostService struct {
	store     repository.Store
	cache     PostCache
	publisher events.Publisher
	logger    *slog.Logger
}

// NewPostService wires the post service. A nil cache or publisher disables
// that feature.
func NewPostService(store repository.Store, postCache PostCache, publisher events.Publisher, logger *slog.Logger) *PostService {
	if postCache == nil {
		postCache = cache.Nop{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &PostService{
		store:     store,
		cache:     postCache,
		publisher: publisher,
		logger:    logger,
	}
}

// Create stores a new post with a like count of zero and the tags parsed
// from in.Tags. It returns the new post's id.
func (s *PostService) Create(ctx context.Context, in PostInput) (int64, error) {
	post := model.Post{
		Title:      in.Title,
		Text:       in.Text,
		ImageData:  in.Image,
		LikesCount: 0,
	}
	tags := ParseTags(in.Tags)

	err := s.store.WithTx(ctx, func(tx repository.Stores) error {
		if _, err := tx.Posts().Create(ctx, &post); err != nil {
			return err
		}
		if len(tags) > 0 {
			return tx.Tags().SaveTags(ctx, tags, post.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("post created", "id", post.ID, "tags", len(tags), "image_bytes", len(post.ImageData))
	s.publish(ctx, events.NewPostEvent(events.PostCreated, post.ID))
	return post.ID, nil
}

// Update applies the non-blank fields of in to the post. Tags are replaced
// only when in.Tags yields at least one tag.
func (s *PostService) Update(ctx context.Context, id int64, in PostInput) error {
	patch := in.patch()

	err := s.store.WithTx(ctx, func(tx repository.Stores) error {
		existing, err := tx.Posts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Posts().Update(ctx, patch, *existing); err != nil {
			return err
		}
		if patch.HasTags() {
			return tx.Tags().UpdateTags(ctx, patch.Tags, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.logger.Info("post updated", "id", id, "tags_replaced", patch.HasTags())
	s.publish(ctx, events.NewPostEvent(events.PostUpdated, id))
	return nil
}

// GetByID returns the post with its tags and comments.
func (s *PostService) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	if cached, ok, err := s.cache.Get(ctx, id); err != nil {
		s.logger.Warn("post cache read failed", "id", id, "error", err)
	} else if ok {
		return cached, nil
	}

	post, err := s.store.Posts().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Tags, err = s.store.Tags().GetTagsByPostID(ctx, id); err != nil {
		return nil, err
	}
	if post.Comments, err = s.store.Comments().GetAllByPostID(ctx, id); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, *post); err != nil {
		s.logger.Warn("post cache write failed", "id", id, "error", err)
	}
	return post, nil
}

// GetAllByParams returns page pageNumber (1-based) of the listing as views.
func (s *PostService) GetAllByParams(ctx context.Context, search string, pageSize, pageNumber int) ([]model.PostView, error) {
	posts, err := s.store.Posts().GetAllByParams(ctx, repository.ListOptions{
		Search: search,
		Limit:  pageSize,
		Offset: (pageNumber - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}

	views := make([]model.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, model.NewPostView(p))
	}
	return views, nil
}

// HasNextPage reports whether any matching post lies past page pageNumber.
// The probe starts at pageNumber*pageSize, the first row of the next page.
func (s *PostService) HasNextPage(ctx context.Context, search string, pageSize, pageNumber int) (bool, error) {
	return s.store.Posts().HasNextPage(ctx, repository.ListOptions{
		Search: search,
		Limit:  pageSize,
		Offset: pageNumber * pageSize,
	})
}

// Page loads one listing page and its paging descriptor. Out of range
// sizes and page numbers are clamped.
func (s *PostService) Page(ctx context.Context, search string, pageSize, pageNumber int) ([]model.PostView, model.Paging, error) {
	pageSize, pageNumber = NormalizePage(pageSize, pageNumber)

	views, err := s.GetAllByParams(ctx, search, pageSize, pageNumber)
	if err != nil {
		return nil, model.Paging{}, err
	}
	hasNext, err := s.HasNextPage(ctx, search, pageSize, pageNumber)
	if err != nil {
		return nil, model.Paging{}, err
	}
	return views, model.NewPaging(pageNumber, pageSize, hasNext), nil
}

// NormalizePage applies the listing defaults: size 10 (at most 100) and
// page 1.
func NormalizePage(pageSize, pageNumber int) (int, int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	return pageSize, pageNumber
}

// Delete removes the post together with its comments and associations.
func (s *PostService) Delete(ctx context.Context, id int64) error {
	err := s.store.WithTx(ctx, func(tx repository.Stores) error {
		if _, err := tx.Posts().GetByID(ctx, id); err != nil {
			return err
		}
		return tx.Posts().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.logger.Info("post deleted", "id", id)
	s.publish(ctx, events.NewPostEvent(events.PostDeleted, id))
	return nil
}

// ChangeRating adds one like when like is true and removes one otherwise.
// The count has no lower bound. It returns the new count.
//
// The read and the write are not guarded against a concurrent rating of
// the same post; two simultaneous likes can count as one.
func (s *PostService) ChangeRating(ctx context.Context, like bool, id int64) (int64, error) {
	var likes int64
	err := s.store.WithTx(ctx, func(tx repository.Stores) error {
		post, err := tx.Posts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if like {
			post.LikesCount++
		} else {
			post.LikesCount--
		}
		likes = post.LikesCount
		return tx.Posts().UpdateRating(ctx, *post)
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx, id)
	s.logger.Debug("post rated", "id", id, "like", like, "likes", likes)
	s.publish(ctx, events.NewPostEvent(events.PostRated, id))
	return likes, nil
}

// ImageData returns the post's image bytes, empty when it has none.
func (s *PostService) ImageData(ctx context.Context, id int64) ([]byte, error) {
	data, err := s.store.Posts().FindImageDataByPostID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []byte{}, nil
	}
	return data, nil
}

func (s *PostService) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("post cache invalidation failed", "id", id, "error", err)
	}
}

func (s *PostService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("event publish failed", "type", e.Type, "post_id", e.PostID, "error", err)
	}
}
