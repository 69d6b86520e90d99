// Package blog talks to the Big AIR Lab blog API and turns articles into
// narration text.
package blog

import (
	"encoding/json"
	"strings"
	"time"
)

// Section is one subheaded part of an article.
type Section struct {
	Subheading  string `json:"subheading"`
	Image       Images `json:"image"`
	Description string `json:"description"`
}

// Images is a section image field, which the API sends as a string, a list
// of strings or null.
type Images []string

// UnmarshalJSON accepts string, []string and null.
func (i *Images) UnmarshalJSON(data []byte) error {
	var one *string
	if err := json.Unmarshal(data, &one); err == nil {
		*i = nil
		if one != nil {
			*i = clean([]string{*one})
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*i = clean(many)
	return nil
}

func clean(urls []string) Images {
	var out Images
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Blog is a single article.
type Blog struct {
	ID          string          `json:"_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	HeroImage   string          `json:"hero_image"`
	Sections    []Section       `json:"sections"`
	Sources     json.RawMessage `json:"sources,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// UnmarshalJSON accepts the id under "_id" (detail endpoint) or "id"
// (listing endpoint).
func (b *Blog) UnmarshalJSON(data []byte) error {
	type plain Blog
	aux := struct {
		*plain
		AltID string `json:"id"`
	}{plain: (*plain)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = aux.AltID
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Published parses CreatedAt. Timestamps without a zone are UTC.
func (b Blog) Published() (time.Time, bool) {
	s := strings.TrimSpace(b.CreatedAt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Headings returns the non-empty section subheadings, the article's table
// of contents.
func (b Blog) Headings() []string {
	var out []string
	for _, s := range b.Sections {
		if s.Subheading != "" {
			out = append(out, s.Subheading)
		}
	}
	return out
}

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
	Limit       int  `json:"limit"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

// Filters echoes the filters applied to a listing.
type Filters struct {
	Category *string `json:"category"`
}

// ListResponse is the envelope returned by GET /blogs.
type ListResponse struct {
	Status string `json:"status"`
	Data   struct {
		Blogs      []Blog     `json:"blogs"`
		Pagination Pagination `json:"pagination"`
		Filters    Filters    `json:"filters"`
	} `json:"data"`
}
