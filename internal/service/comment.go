package service

import (
	"context"
	"log/slog"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/events"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

type CommentInput struct {
	Text string
}

// CommentService manages comments. Every operation first resolves the
// post through PostService, so a comment can only be reached through the
// post that owns it.
type CommentService struct {
	store  repository.Store
	posts  *PostService
	logger *slog.Logger
}

func NewCommentService(store repository.Store, posts *PostService, logger *slog.Logger) *CommentService {
	return &CommentService{store: store, posts: posts, logger: logger}
}

// Create adds a comment to the post. A missing post fails with NotFound
// and nothing is written.
func (s *CommentService) Create(ctx context.Context, postID int64, in CommentInput) (model.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return model.Comment{}, err
	}

	comment := model.Comment{Text: in.Text}
	err := s.store.WithTx(ctx, func(tx repository.Stores) error {
		return tx.Comments().Create(ctx, &comment, postID)
	})
	if err != nil {
		return model.Comment{}, err
	}

	s.posts.invalidate(ctx, postID)
	s.logger.Info("comment created", "post_id", postID, "comment_id", comment.ID)
	s.posts.publish(ctx, events.NewCommentEvent(events.CommentCreated, postID, comment.ID))
	return comment, nil
}

// Update changes the comment's text when in.Text is not blank.
func (s *CommentService) Update(ctx context.Context, postID, commentID int64, in CommentInput) (model.Comment, error) {
	existing, err := s.find(ctx, postID, commentID)
	if err != nil {
		return model.Comment{}, err
	}

	text := in.Text
	updated, err := s.store.Comments().Update(ctx, existing, model.CommentPatch{Text: &text})
	if err != nil {
		return model.Comment{}, err
	}

	s.posts.invalidate(ctx, postID)
	s.logger.Info("comment updated", "post_id", postID, "comment_id", commentID)
	s.posts.publish(ctx, events.NewCommentEvent(events.CommentUpdated, postID, commentID))
	return updated, nil
}

func (s *CommentService) Delete(ctx context.Context, postID, commentID int64) error {
	if _, err := s.find(ctx, postID, commentID); err != nil {
		return err
	}

	if err := s.store.Comments().Delete(ctx, commentID); err != nil {
		return err
	}

	s.posts.invalidate(ctx, postID)
	s.logger.Info("comment deleted", "post_id", postID, "comment_id", commentID)
	s.posts.publish(ctx, events.NewCommentEvent(events.CommentDeleted, postID, commentID))
	return nil
}

// find returns the comment only if it belongs to the post.
func (s *CommentService) find(ctx context.Context, postID, commentID int64) (model.Comment, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return model.Comment{}, err
	}
	comment, ok := post.FindComment(commentID)
	if !ok {
		return model.Comment{}, apperror.NotFound("comment", commentID)
	}
	return comment, nil
}
