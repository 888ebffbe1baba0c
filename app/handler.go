package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sushihentaime/blogdesk/internal/aiservice"
	"github.com/sushihentaime/blogdesk/internal/blogservice"
	"github.com/sushihentaime/blogdesk/internal/common"
)

const (
	sidebarTitleLen       = 50
	sidebarDescriptionLen = 80
)

type blogListItem struct {
	ID           blogservice.ID `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     []string       `json:"category"`
	CoverImage   string         `json:"coverImage"`
	RelativeTime string         `json:"relativeTime"`
	ReadTime     int            `json:"readTime"`
}

func (app *application) listBlogsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	blogs, err := app.blogService.GetBlogs(r.Context(), query)
	if err != nil {
		app.badGatewayErrorResponse(w, r, err, "failed to load blogs")
		return
	}

	items := make([]blogListItem, 0, len(blogs))
	for _, b := range blogs {
		items = append(items, blogListItem{
			ID:           b.ID,
			Title:        blogservice.Truncate(b.Title, sidebarTitleLen),
			Description:  blogservice.Truncate(b.Description, sidebarDescriptionLen),
			Category:     b.Category,
			CoverImage:   b.CoverImage,
			RelativeTime: blogservice.RelativeTime(b.Date),
			ReadTime:     blogservice.ReadTime(b.Content),
		})
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"blogs": items, "results": len(items)}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) showBlogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	blog, err := app.blogService.GetBlogByID(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, blogservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.badGatewayErrorResponse(w, r, err, "failed to load blog")
		}
		return
	}

	env := envelope{
		"blog":          blog,
		"segments":      blogservice.Segments(blog.Content),
		"readTime":      blogservice.ReadTime(blog.Content),
		"formattedDate": blogservice.FormatDate(blog.Date),
		"relativeTime":  blogservice.RelativeTime(blog.Date),
	}

	err = app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) createBlogHandler(w http.ResponseWriter, r *http.Request) {
	var input blogservice.FormInput

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	blog, err := app.blogService.CreateBlogFromForm(r.Context(), input, time.Now())
	if err != nil {
		var verr common.ValidationError
		switch {
		case errors.As(err, &verr):
			app.failedValidationErrorResponse(w, r, verr.Errors)
		default:
			app.badGatewayErrorResponse(w, r, err, "failed to create blog")
		}
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/blogs/%s", blog.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"blog": blog}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// validateBlogFieldHandler checks one form field as the author types. A field
// is treated as touched (blurred) unless the request says otherwise, and an
// untouched field reports no error yet.
func (app *application) validateBlogFieldHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Field   string `json:"field"`
		Value   string `json:"value"`
		Touched *bool  `json:"touched"`
	}

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	if !blogservice.IsFormField(input.Field) {
		app.badRequestErrorResponse(w, r, fmt.Errorf("unknown field %q", input.Field))
		return
	}

	form := blogservice.NewForm()
	form.Change(input.Field, input.Value)
	if input.Touched == nil || *input.Touched {
		form.Blur(input.Field)
	}

	env := envelope{
		"field":   input.Field,
		"error":   form.Errors()[input.Field],
		"touched": form.Touched(input.Field),
	}

	err = app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) generateBlogHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title    string `json:"title"`
		Category string `json:"category"`
	}

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	v := common.NewValidator()
	v.Check(strings.TrimSpace(input.Title) != "", blogservice.FieldTitle, "must be provided")
	v.Check(strings.TrimSpace(input.Category) != "", blogservice.FieldCategory, "must be provided")
	if !v.Valid() {
		app.failedValidationErrorResponse(w, r, v.Errors)
		return
	}

	gen, err := app.generator.Generate(r.Context(), strings.TrimSpace(input.Title), strings.TrimSpace(input.Category))
	if err != nil {
		switch {
		case errors.Is(err, aiservice.ErrNotConfigured):
			app.serviceUnavailableErrorResponse(w, r, "ai generation is not available")
		default:
			app.badGatewayErrorResponse(w, r, err, "failed to generate content")
		}
		return
	}

	env := envelope{
		"description": gen.Description,
		"content":     gen.Content,
		"generated":   !gen.Empty(),
	}

	err = app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
