package blog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/mail"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrInvalid wraps every validation failure of a draft or contact form.
var ErrInvalid = errors.New("invalid input")

// NewBlog is the body of a create request.
type NewBlog struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	HeroImage   string    `json:"hero_image"`
	Sections    []Section `json:"sections"`
	Sources     []Source  `json:"sources"`
}

// Validate checks the fields the API rejects when missing.
func (n NewBlog) Validate() error {
	required := []struct{ name, value string }{
		{"title", n.Title},
		{"description", n.Description},
		{"category", n.Category},
		{"hero image", n.HeroImage},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalid, f.name)
		}
	}
	if !isAbsoluteURL(n.HeroImage) {
		return fmt.Errorf("%w: hero image %q is not an http(s) URL", ErrInvalid, n.HeroImage)
	}
	for i, s := range n.Sections {
		if strings.TrimSpace(s.Subheading) == "" {
			return fmt.Errorf("%w: section %d has no subheading", ErrInvalid, i+1)
		}
	}
	return nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Create publishes a new article and returns it as stored.
func (c *Client) Create(ctx context.Context, n NewBlog) (Blog, error) {
	if err := n.Validate(); err != nil {
		return Blog{}, err
	}
	if n.Sections == nil {
		n.Sections = []Section{}
	}
	if n.Sources == nil {
		n.Sources = []Source{}
	}
	var b Blog
	if err := c.postJSON(ctx, "/blogs", n, &b); err != nil {
		return Blog{}, err
	}
	return b, nil
}

// AddSection appends s to the article id and returns the updated article.
// The cached copy, if any, is replaced.
func (c *Client) AddSection(ctx context.Context, id string, s Section) (Blog, error) {
	if strings.TrimSpace(s.Subheading) == "" {
		return Blog{}, fmt.Errorf("%w: subheading is required", ErrInvalid)
	}
	var b Blog
	if err := c.postJSON(ctx, "/blogs/"+url.PathEscape(id)+"/sections", s, &b); err != nil {
		return Blog{}, err
	}
	if b.ID == "" {
		b.ID = id
	}
	if c.cache != nil {
		if err := c.cache.Put(b); err != nil {
			return b, fmt.Errorf("caching updated article: %w", err)
		}
	}
	return b, nil
}

// UploadImage stores an image and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, name string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/upload-image", &body, mw.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("blog api: upload of %s returned no url", name)
	}
	return resp.URL, nil
}

// ContactForm is a message sent through the site's contact page.
type ContactForm struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	HowDidYouHear string `json:"how_did_you_hear"`
	Message       string `json:"message"`
}

// ContactSubmission is a stored contact form.
type ContactSubmission struct {
	ContactForm
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// Validate applies the length limits the API enforces.
func (f ContactForm) Validate() error {
	limits := []struct {
		name  string
		value string
		max   int
	}{
		{"name", f.Name, 100},
		{"phone", f.Phone, 20},
		{"how did you hear", f.HowDidYouHear, 100},
		{"message", f.Message, 2000},
	}
	for _, l := range limits {
		n := utf8.RuneCountInString(strings.TrimSpace(l.value))
		if n == 0 {
			return fmt.Errorf("%w: %s is required", ErrInvalid, l.name)
		}
		if n > l.max {
			return fmt.Errorf("%w: %s is longer than %d characters", ErrInvalid, l.name, l.max)
		}
	}
	if _, err := mail.ParseAddress(f.Email); err != nil {
		return fmt.Errorf("%w: email %q: %w", ErrInvalid, f.Email, err)
	}
	return nil
}

// Contact submits f.
func (c *Client) Contact(ctx context.Context, f ContactForm) (ContactSubmission, error) {
	if err := f.Validate(); err != nil {
		return ContactSubmission{}, err
	}
	var s ContactSubmission
	if err := c.postJSON(ctx, "/contact", f, &s); err != nil {
		return ContactSubmission{}, err
	}
	return s, nil
}
