package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/service"
)

// CommentService is the subset of *service.CommentService the handlers use.
type CommentService interface {
	Create(ctx context.Context, postID int64, in service.CommentInput) (model.Comment, error)
	Update(ctx context.Context, postID, commentID int64, in service.CommentInput) (model.Comment, error)
	Delete(ctx context.Context, postID, commentID int64) error
}

type CommentHandler struct {
	responder
	comments CommentService
	forms    *FormValidator
}

func NewCommentHandler(comments CommentService, render *Renderer, forms *FormValidator, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{
		responder: responder{render: render, logger: logger},
		comments:  comments,
		forms:     forms,
	}
}

// HTTP: POST /posts/{id}/comments
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	form := commentForm{Text: r.PostFormValue("text")}
	if err := h.forms.Check(form); err != nil {
		h.renderError(w, r, err)
		return
	}

	if _, err := h.comments.Create(r.Context(), postID, service.CommentInput{Text: form.Text}); err != nil {
		h.renderError(w, r, err)
		return
	}

	h.redirect(w, r, postURL(postID))
}

// HTTP: POST /posts/{id}/comments/{commentId}
func (h *CommentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := commentPath(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	form := commentForm{Text: r.PostFormValue("text")}
	if err := h.forms.Check(form); err != nil {
		h.renderError(w, r, err)
		return
	}

	if _, err := h.comments.Update(r.Context(), postID, commentID, service.CommentInput{Text: form.Text}); err != nil {
		h.renderError(w, r, err)
		return
	}

	h.redirect(w, r, postURL(postID))
}

// HTTP: POST /posts/{id}/comments/{commentId}/delete
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := commentPath(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := h.comments.Delete(r.Context(), postID, commentID); err != nil {
		h.renderError(w, r, err)
		return
	}

	h.redirect(w, r, postURL(postID))
}

func commentPath(r *http.Request) (postID, commentID int64, err error) {
	if postID, err = pathID(r, "id"); err != nil {
		return 0, 0, err
	}
	if commentID, err = pathID(r, "commentId"); err != nil {
		return 0, 0, err
	}
	return postID, commentID, nil
}
