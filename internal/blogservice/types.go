package blogservice

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sushihentaime/blogdesk/internal/common"
)

// ID identifies a blog on the remote resource. The backend may hand out
// numbers or strings; both decode into the same value.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Valid reports whether id can address a record. Empty and zero ids are the
// "nothing selected" state.
func (id ID) Valid() bool {
	return id != "" && id != "0"
}

type Blog struct {
	ID          ID       `json:"id,omitempty"`
	Title       string   `json:"title"`
	Category    []string `json:"category"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	CoverImage  string   `json:"coverImage"`
	// Date is an ISO-8601 timestamp set by the author's client at creation.
	Date string `json:"date"`
}

// Draft is a blog that has not been assigned an id yet.
type Draft struct {
	Title       string   `json:"title"`
	Category    []string `json:"category"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	CoverImage  string   `json:"coverImage"`
	Date        string   `json:"date"`
}

// BlogModel talks to the remote blog resource.
type BlogModel struct {
	baseURL string
	client  *http.Client
}

type BlogService struct {
	m      *BlogModel
	c      *common.Cache
	mb     common.MessageProducer
	logger *slog.Logger
}
