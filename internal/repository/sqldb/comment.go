package sqldb

import (
	"context"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

var _ repository.CommentRepository = (*CommentDB)(nil)

// CommentDB stores comments and their posts_comments link rows.
type CommentDB struct {
	q querier
}

// Create inserts the comment, sets its generated ID and links it to the
// post. Run it inside WithTx so both rows land together.
func (s *CommentDB) Create(ctx context.Context, comment *model.Comment, postID int64) error {
	var id int64
	err := s.q.queryRow(ctx,
		`INSERT INTO comments (text) VALUES (?) RETURNING id`,
		comment.Text,
	).Scan(&id)
	if err != nil {
		return apperror.DataAccess("creating comment", err)
	}
	comment.ID = id

	if _, err := s.q.exec(ctx,
		`INSERT INTO posts_comments (post_id, comment_id) VALUES (?, ?)`,
		postID, id,
	); err != nil {
		return apperror.DataAccess("linking comment to post", err)
	}
	return nil
}

// Update applies patch to existing and stores the resulting text.
func (s *CommentDB) Update(ctx context.Context, existing model.Comment, patch model.CommentPatch) (model.Comment, error) {
	merged := patch.Apply(existing)

	result, err := s.q.exec(ctx,
		`UPDATE comments SET text = ? WHERE id = ?`,
		merged.Text, merged.ID,
	)
	if err != nil {
		return model.Comment{}, apperror.DataAccess("updating comment", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.Comment{}, apperror.DataAccess("checking rows affected", err)
	}
	if n == 0 {
		return model.Comment{}, apperror.NotFound("comment", merged.ID)
	}
	return merged, nil
}

func (s *CommentDB) GetAllByPostID(ctx context.Context, postID int64) ([]model.Comment, error) {
	rows, err := s.q.query(ctx,
		`SELECT c.id, c.text
		 FROM comments c
		 JOIN posts_comments pc ON pc.comment_id = c.id
		 WHERE pc.post_id = ?
		 ORDER BY c.id`,
		postID,
	)
	if err != nil {
		return nil, apperror.DataAccess("listing post comments", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.Text); err != nil {
			return nil, apperror.DataAccess("scanning comment row", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.DataAccess("iterating comments", err)
	}
	return comments, nil
}

// Delete removes the comment; its posts_comments row goes with it through
// ON DELETE CASCADE.
func (s *CommentDB) Delete(ctx context.Context, id int64) error {
	result, err := s.q.exec(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return apperror.DataAccess("deleting comment", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.DataAccess("checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound("comment", id)
	}
	return nil
}
