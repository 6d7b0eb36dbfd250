package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/blog/internal/apperror"
)

// createPostForm and updatePostForm differ only in whether blank fields
// are allowed. A blank field on update keeps the stored value.
type createPostForm struct {
	Title string `form:"title" validate:"notblank,min=10,max=150"`
	Text  string `form:"text" validate:"notblank,min=10,max=5000"`
	Tags  string `form:"tags" validate:"max=1000"`
}

type updatePostForm struct {
	Title string `form:"title" validate:"omitempty,min=10,max=150"`
	Text  string `form:"text" validate:"omitempty,min=10,max=5000"`
	Tags  string `form:"tags" validate:"max=1000"`
}

type commentForm struct {
	Text string `form:"text" validate:"notblank,min=10,max=2000"`
}

// FormValidator checks decoded forms and reports failures as a
// field -> message map.
type FormValidator struct {
	validate *validator.Validate
}

func NewFormValidator() *FormValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	// Registering a fresh validator with a valid tag never fails.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &FormValidator{validate: v}
}

// Check returns nil or an apperror validation error listing every field
// that failed.
func (fv *FormValidator) Check(form any) error {
	err := fv.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.ValidationFailed("form", err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return apperror.InvalidFields(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return fmt.Sprintf("%s must not be blank", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be a positive integer, got %q", name, raw))
	}
	return id, nil
}

// queryInt parses an optional integer query parameter; absent means def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer, got %q", name, raw))
	}
	return n, nil
}
