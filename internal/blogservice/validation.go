package blogservice

import (
	"net/url"
	"strings"
	"time"

	"github.com/sushihentaime/blogdesk/internal/common"
)

// Form field names, as posted by the creation form.
const (
	FieldTitle       = "title"
	FieldCategory    = "category"
	FieldCoverImage  = "coverImage"
	FieldDescription = "description"
	FieldContent     = "content"
)

const (
	titleMinLen       = 5
	titleMaxLen       = 200
	descriptionMinLen = 10
	descriptionMaxLen = 500
	contentMinLen     = 50
)

var formFields = []string{FieldTitle, FieldCategory, FieldCoverImage, FieldDescription, FieldContent}

// FormInput holds the raw strings of the creation form.
type FormInput struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	CoverImage  string `json:"coverImage"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

func (in FormInput) value(field string) string {
	switch field {
	case FieldTitle:
		return in.Title
	case FieldCategory:
		return in.Category
	case FieldCoverImage:
		return in.CoverImage
	case FieldDescription:
		return in.Description
	case FieldContent:
		return in.Content
	default:
		return ""
	}
}

func validateTitle(v *common.Validator, title string) {
	title = strings.TrimSpace(title)
	v.Check(title != "", FieldTitle, "Title is required")
	v.Check(v.CheckMinLength(title, titleMinLen), FieldTitle, "Title must be at least 5 characters")
	v.Check(v.CheckMaxLength(title, titleMaxLen), FieldTitle, "Title must not exceed 200 characters")
}

func validateCategory(v *common.Validator, category string) {
	v.Check(strings.TrimSpace(category) != "", FieldCategory, "Category is required")
	v.Check(len(ParseCategories(category)) > 0, FieldCategory, "Please enter at least one category")
}

func validateCoverImage(v *common.Validator, coverImage string) {
	v.Check(strings.TrimSpace(coverImage) != "", FieldCoverImage, "Cover image URL is required")
	v.Check(IsValidURL(strings.TrimSpace(coverImage)), FieldCoverImage, "Please enter a valid URL")
}

func validateDescription(v *common.Validator, description string) {
	description = strings.TrimSpace(description)
	v.Check(description != "", FieldDescription, "Description is required")
	v.Check(v.CheckMinLength(description, descriptionMinLen), FieldDescription, "Description must be at least 10 characters")
	v.Check(v.CheckMaxLength(description, descriptionMaxLen), FieldDescription, "Description must not exceed 500 characters")
}

func validateContent(v *common.Validator, content string) {
	content = strings.TrimSpace(content)
	v.Check(content != "", FieldContent, "Content is required")
	v.Check(v.CheckMinLength(content, contentMinLen), FieldContent, "Content must be at least 50 characters")
}

func validateField(v *common.Validator, field, value string) {
	switch field {
	case FieldTitle:
		validateTitle(v, value)
	case FieldCategory:
		validateCategory(v, value)
	case FieldCoverImage:
		validateCoverImage(v, value)
	case FieldDescription:
		validateDescription(v, value)
	case FieldContent:
		validateContent(v, value)
	}
}

func IsFormField(field string) bool {
	for _, f := range formFields {
		if f == field {
			return true
		}
	}
	return false
}

// ValidateField returns the message for the first rule value breaks, or ""
// when it is valid. Unknown fields are always valid.
func ValidateField(field, value string) string {
	v := common.NewValidator()
	validateField(v, field, value)

	return v.Error(field)
}

// ValidateForm applies every field rule and returns a common.ValidationError
// listing all violations, or nil.
func ValidateForm(in FormInput) error {
	v := common.NewValidator()
	for _, field := range formFields {
		validateField(v, field, in.value(field))
	}

	if !v.Valid() {
		return v.ValidationError()
	}

	return nil
}

// Draft validates the form and turns it into a draft dated now.
func (in FormInput) Draft(now time.Time) (*Draft, error) {
	if err := ValidateForm(in); err != nil {
		return nil, err
	}

	return &Draft{
		Title:       strings.TrimSpace(in.Title),
		Category:    ParseCategories(in.Category),
		Description: strings.TrimSpace(in.Description),
		Content:     strings.TrimSpace(in.Content),
		CoverImage:  strings.TrimSpace(in.CoverImage),
		Date:        now.UTC().Format(isoLayout),
	}, nil
}

// IsValidURL reports whether s parses as an absolute URL.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}

	return u.Host != "" || u.Opaque != ""
}
