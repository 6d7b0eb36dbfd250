package handler

// ERROR RESPONSES:
// Services return apperror values and never think about HTTP. Classify is
// the single place where an error becomes a status code and a message;
// renderError adds the request-specific parts and renders the error page.
//
//	apperror.ErrNotFound   -> 404, message from the error
//	apperror.ErrValidation -> 400, message plus field -> message map
//	apperror.ErrConflict   -> 409
//	apperror.ErrDataAccess -> 500, generic database message
//	anything else          -> 500, generic message
//
// Messages of 500s never reach the client. They are logged with an
// incident id that is also shown on the page.

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/blog/internal/apperror"
)

const (
	msgDataAccess = "A database error occurred. Please try again later."
	msgInternal   = "An unexpected error occurred."
)

// ErrorView is what the error page shows.
type ErrorView struct {
	Status      int
	Message     string
	FieldErrors map[string]string
	Timestamp   time.Time
	Referer     string
	IncidentID  string
}

func (v ErrorView) StatusText() string {
	return http.StatusText(v.Status)
}

// Classify maps an error to its status code and user-facing message.
func Classify(err error) ErrorView {
	var appErr *apperror.AppError
	hasAppErr := errors.As(err, &appErr)

	switch {
	case errors.Is(err, apperror.ErrValidation):
		v := ErrorView{Status: http.StatusBadRequest, Message: "invalid input"}
		if hasAppErr {
			v.Message = appErr.Message
			v.FieldErrors = appErr.Fields
		}
		return v
	case errors.Is(err, apperror.ErrNotFound):
		v := ErrorView{Status: http.StatusNotFound, Message: "not found"}
		if hasAppErr {
			v.Message = appErr.Message
		}
		return v
	case errors.Is(err, apperror.ErrConflict):
		v := ErrorView{Status: http.StatusConflict, Message: "conflict"}
		if hasAppErr {
			v.Message = appErr.Message
		}
		return v
	case errors.Is(err, apperror.ErrDataAccess):
		return ErrorView{Status: http.StatusInternalServerError, Message: msgDataAccess}
	default:
		return ErrorView{Status: http.StatusInternalServerError, Message: msgInternal}
	}
}

type errorPage struct {
	Title string
	Error ErrorView
}

// responder is embedded by the handlers for rendering and error reporting.
type responder struct {
	render *Renderer
	logger *slog.Logger
}

func (h responder) renderError(w http.ResponseWriter, r *http.Request, err error) {
	view := Classify(err)
	view.Timestamp = time.Now()
	view.Referer = r.Referer()

	if view.Status >= http.StatusInternalServerError {
		view.IncidentID = xid.New().String()
		h.logger.Error("request failed",
			slog.String("incident", view.IncidentID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	} else {
		h.logger.Info("request rejected",
			slog.Int("status", view.Status),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	h.render.Render(w, view.Status, pageError, errorPage{
		Title: view.StatusText(),
		Error: view,
	})
}

func (h responder) redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusFound)
}

// ErrorHandler renders the error page for requests no route matched.
type ErrorHandler struct {
	responder
}

func NewErrorHandler(render *Renderer, logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{responder{render: render, logger: logger}}
}

func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, apperror.NotFound("page", r.URL.Path))
}

func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	view := ErrorView{
		Status:    http.StatusMethodNotAllowed,
		Message:   r.Method + " is not supported for " + r.URL.Path,
		Timestamp: time.Now(),
		Referer:   r.Referer(),
	}
	h.render.Render(w, view.Status, pageError, errorPage{Title: view.StatusText(), Error: view})
}
