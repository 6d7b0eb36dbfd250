// Package repository declares the storage interfaces the services depend on.
// The sqldb subpackage implements them on database/sql.
package repository

import (
	"context"

	"github.com/sakif/blog/internal/model"
)

// ListOptions selects a page of posts. Search, when non-empty, keeps only
// posts carrying a tag whose name contains it (case-insensitive).
type ListOptions struct {
	Search string
	Limit  int
	Offset int
}

type TagRepository interface {
	SaveTags(ctx context.Context, tags []model.Tag, postID int64) error
	UpdateTags(ctx context.Context, tags []model.Tag, postID int64) error
	GetTagsByPostID(ctx context.Context, postID int64) ([]model.Tag, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment, postID int64) error
	Update(ctx context.Context, existing model.Comment, patch model.CommentPatch) (model.Comment, error)
	GetAllByPostID(ctx context.Context, postID int64) ([]model.Comment, error)
	Delete(ctx context.Context, id int64) error
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) (int64, error)
	Update(ctx context.Context, patch model.PostPatch, existing model.Post) (model.Post, error)
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	Delete(ctx context.Context, id int64) error
	UpdateRating(ctx context.Context, post model.Post) error
	GetAllByParams(ctx context.Context, opts ListOptions) ([]model.Post, error)
	HasNextPage(ctx context.Context, opts ListOptions) (bool, error)
	FindImageDataByPostID(ctx context.Context, id int64) ([]byte, error)
}

// Stores groups the three stores bound to one connection or transaction.
type Stores interface {
	Posts() PostRepository
	Tags() TagRepository
	Comments() CommentRepository
}

// Store is the root storage handle. WithTx runs fn inside a transaction:
// it commits only when fn returns nil and rolls back otherwise.
type Store interface {
	Stores
	WithTx(ctx context.Context, fn func(Stores) error) error
}
