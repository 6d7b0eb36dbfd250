// Package events publishes domain events about posts and comments to a
// message broker. Consumers (notifications, search indexing, ...) subscribe
// to the fanout exchange; the blog itself never reads them back.
package events

import (
	"context"
	"time"
)

type Type string

const (
	PostCreated    Type = "post.created"
	PostUpdated    Type = "post.updated"
	PostDeleted    Type = "post.deleted"
	PostRated      Type = "post.rated"
	CommentCreated Type = "comment.created"
	CommentUpdated Type = "comment.updated"
	CommentDeleted Type = "comment.deleted"
)

// Event is the JSON message body. CommentID is zero for post events.
type Event struct {
	Type       Type      `json:"type"`
	PostID     int64     `json:"postId"`
	CommentID  int64     `json:"commentId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewPostEvent(t Type, postID int64) Event {
	return Event{Type: t, PostID: postID, OccurredAt: time.Now().UTC()}
}

func NewCommentEvent(t Type, postID, commentID int64) Event {
	return Event{Type: t, PostID: postID, CommentID: commentID, OccurredAt: time.Now().UTC()}
}

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
