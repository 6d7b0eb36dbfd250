// Package handler contains the HTTP handlers of the blog.
//
// Handlers parse the request, call a service and either redirect or render
// a page. They hold no business rules: validation of field lengths happens
// here because it is about the shape of the form, everything else is the
// services' job.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/service"
)

// PostService is the subset of *service.PostService the handlers use.
type PostService interface {
	Create(ctx context.Context, in service.PostInput) (int64, error)
	Update(ctx context.Context, id int64, in service.PostInput) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	Page(ctx context.Context, search string, pageSize, pageNumber int) ([]model.PostView, model.Paging, error)
	Delete(ctx context.Context, id int64) error
	ChangeRating(ctx context.Context, like bool, id int64) (int64, error)
	ImageData(ctx context.Context, id int64) ([]byte, error)
}

// Sizes offered by the listing's page size selector.
var pageSizes = []int{5, 10, 20, 50, 100}

type PostHandler struct {
	responder
	posts     PostService
	forms     *FormValidator
	maxUpload int64
}

func NewPostHandler(posts PostService, render *Renderer, forms *FormValidator, maxUpload int64, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		responder: responder{render: render, logger: logger},
		posts:     posts,
		forms:     forms,
		maxUpload: maxUpload,
	}
}

type listingPage struct {
	Title     string
	Posts     []model.PostView
	Paging    model.Paging
	Search    string
	PageSizes []int
}

type postPage struct {
	Title string
	Post  model.PostView
}

type postFormPage struct {
	Title string
	Post  *model.PostView
}

// HandleIndex redirects to the listing.
//
// HTTP: GET /
func (h *PostHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/posts")
}

// HandleList renders one page of posts, optionally filtered by tag.
//
// HTTP: GET /posts?search=go&pageSize=10&pageNumber=1
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	pageSize, err := queryInt(r, "pageSize", service.DefaultPageSize)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	pageNumber, err := queryInt(r, "pageNumber", 1)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	views, paging, err := h.posts.Page(r.Context(), search, pageSize, pageNumber)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render.Render(w, http.StatusOK, pagePosts, listingPage{
		Title:     "Posts",
		Posts:     views,
		Paging:    paging,
		Search:    search,
		PageSizes: pageSizes,
	})
}

// HandleGet renders a single post with its comments.
//
// HTTP: GET /posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	view := model.NewPostView(*post)
	h.render.Render(w, http.StatusOK, pagePost, postPage{Title: view.Title, Post: view})
}

// HandleNew renders the empty creation form.
//
// HTTP: GET /posts/add
func (h *PostHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, http.StatusOK, pagePostForm, postFormPage{Title: "New post"})
}

// HandleEdit renders the form pre-filled with the post.
//
// HTTP: GET /{id}/edit and GET /posts/{id}/edit
func (h *PostHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	view := model.NewPostView(*post)
	h.render.Render(w, http.StatusOK, pagePostForm, postFormPage{Title: "Edit " + view.Title, Post: &view})
}

// HandleCreate stores a new post from a multipart form.
//
// HTTP: POST /posts (title, text, tags, image)
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		h.renderError(w, r, err)
		return
	}

	form := createPostForm{
		Title: r.PostFormValue("title"),
		Text:  r.PostFormValue("text"),
		Tags:  r.PostFormValue("tags"),
	}
	if err := h.forms.Check(form); err != nil {
		h.renderError(w, r, err)
		return
	}

	image, err := uploadedImage(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	id, err := h.posts.Create(r.Context(), service.PostInput{
		Title: form.Title,
		Text:  form.Text,
		Image: image,
		Tags:  form.Tags,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.redirect(w, r, postURL(id))
}

// HandleUpdate applies the non-blank fields of the form to the post.
//
// HTTP: POST /posts/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if err := h.parseForm(w, r); err != nil {
		h.renderError(w, r, err)
		return
	}

	form := updatePostForm{
		Title: blankToEmpty(r.PostFormValue("title")),
		Text:  blankToEmpty(r.PostFormValue("text")),
		Tags:  r.PostFormValue("tags"),
	}
	if err := h.forms.Check(form); err != nil {
		h.renderError(w, r, err)
		return
	}

	image, err := uploadedImage(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	err = h.posts.Update(r.Context(), id, service.PostInput{
		Title: form.Title,
		Text:  form.Text,
		Image: image,
		Tags:  form.Tags,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.redirect(w, r, postURL(id))
}

// HandleDelete removes the post.
//
// HTTP: POST /posts/{id}/delete
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := h.posts.Delete(r.Context(), id); err != nil {
		h.renderError(w, r, err)
		return
	}

	h.redirect(w, r, "/posts")
}

// HandleLike adds or removes one like.
//
// HTTP: POST /posts/{id}/like?like=true|false
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	raw := r.FormValue("like")
	like, err := strconv.ParseBool(raw)
	if err != nil {
		h.renderError(w, r, apperror.ValidationFailed("like", fmt.Sprintf("like must be true or false, got %q", raw)))
		return
	}

	if _, err := h.posts.ChangeRating(r.Context(), like, id); err != nil {
		h.renderError(w, r, err)
		return
	}

	h.redirect(w, r, postURL(id))
}

// HandleImage serves the raw image of a post.
//
// HTTP: GET /images/{id}
func (h *PostHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data, err := h.posts.ImageData(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if len(data) == 0 {
		h.renderError(w, r, apperror.NotFound("image", id))
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("client went away while writing image", slog.String("error", err.Error()))
	}
}

// parseForm reads a multipart or urlencoded body of at most maxUpload bytes.
func (h *PostHandler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	err := r.ParseMultipartForm(h.maxUpload)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.ValidationFailed("image", fmt.Sprintf("upload exceeds %d MB", h.maxUpload>>20))
	}
	return apperror.ValidationFailed("form", "could not read the submitted form")
}

// uploadedImage returns the bytes of the "image" file field, nil when no
// file was sent.
func uploadedImage(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperror.ValidationFailed("image", "could not read the uploaded image")
	}
	defer file.Close()
	return service.ReadImage(file)
}

func blankToEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

func postURL(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10)
}
