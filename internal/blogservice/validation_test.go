package blogservice

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/sushihentaime/blogdesk/internal/common"
)

func validFormInput() FormInput {
	return FormInput{
		Title:       "  Saving for retirement  ",
		Category:    "Finance, Tech,",
		CoverImage:  "https://example.com/cover.png",
		Description: "A short guide to pensions.",
		Content:     strings.Repeat("Compound interest is patient. ", 3),
	}
}

func TestValidateField(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
		want  string
	}{
		{name: "title missing", field: FieldTitle, value: "", want: "Title is required"},
		{name: "title blank", field: FieldTitle, value: "    ", want: "Title is required"},
		{name: "title short", field: FieldTitle, value: "abcd", want: "Title must be at least 5 characters"},
		{name: "title short after trim", field: FieldTitle, value: "  abcd  ", want: "Title must be at least 5 characters"},
		{name: "title long", field: FieldTitle, value: strings.Repeat("a", 201), want: "Title must not exceed 200 characters"},
		{name: "title at limit", field: FieldTitle, value: strings.Repeat("a", 200), want: ""},
		{name: "title multibyte", field: FieldTitle, value: "héllo", want: ""},
		{name: "category missing", field: FieldCategory, value: "", want: "Category is required"},
		{name: "category only separators", field: FieldCategory, value: " , ,", want: "Please enter at least one category"},
		{name: "category ok", field: FieldCategory, value: "Tech", want: ""},
		{name: "cover missing", field: FieldCoverImage, value: "", want: "Cover image URL is required"},
		{name: "cover not a url", field: FieldCoverImage, value: "not a url", want: "Please enter a valid URL"},
		{name: "cover ok", field: FieldCoverImage, value: "https://example.com/a.png", want: ""},
		{name: "description short", field: FieldDescription, value: "too short", want: "Description must be at least 10 characters"},
		{name: "description long", field: FieldDescription, value: strings.Repeat("b", 501), want: "Description must not exceed 500 characters"},
		{name: "description ok", field: FieldDescription, value: "Long enough now", want: ""},
		{name: "content missing", field: FieldContent, value: "", want: "Content is required"},
		{name: "content short", field: FieldContent, value: strings.Repeat("c", 49), want: "Content must be at least 50 characters"},
		{name: "content ok", field: FieldContent, value: strings.Repeat("c", 50), want: ""},
		{name: "unknown field", field: "author", value: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateField(tt.field, tt.value))
		})
	}
}

func TestValidateForm(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateForm(validFormInput()))
	})

	t.Run("empty", func(t *testing.T) {
		err := ValidateForm(FormInput{})

		var verr common.ValidationError
		assert.True(t, errors.As(err, &verr))
		assert.Len(t, verr.Errors, 5)
		assert.Equal(t, "Title is required", verr.Errors[FieldTitle])
		assert.Equal(t, "Cover image URL is required", verr.Errors[FieldCoverImage])
	})
}

func TestFormInput_Draft(t *testing.T) {
	now := time.Date(2024, 3, 5, 11, 0, 0, 0, time.FixedZone("CET", 3600))

	draft, err := validFormInput().Draft(now)
	assert.NoError(t, err)
	assert.Equal(t, "Saving for retirement", draft.Title)
	assert.Equal(t, []string{"Finance", "Tech"}, draft.Category)
	assert.Equal(t, "2024-03-05T10:00:00.000Z", draft.Date)
	assert.Equal(t, strings.TrimSpace(validFormInput().Content), draft.Content)

	_, err = FormInput{}.Draft(now)
	assert.Error(t, err)
}

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "https://example.com/cover.png", want: true},
		{input: "http://localhost:8080", want: true},
		{input: "mailto:someone@example.com", want: true},
		{input: "example.com/cover.png", want: false},
		{input: "http://", want: false},
		{input: "", want: false},
		{input: "::", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidURL(tt.input))
		})
	}
}
