package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bigairlab/narrate/blog"
)

const testDraft = `---
author: ada
---
# Voice Agents in Banking

![cover](cover.png)

Banks are adopting voice.

## Why Now

Latency dropped.

![chart](https://cdn.example.com/chart.png)

## Risks

Fraud.
`

// blogAPI fakes the write endpoints and records what it receives.
type blogAPI struct {
	mu       sync.Mutex
	uploads  []string
	created  []blog.NewBlog
	appended []blog.Section
	contacts []blog.ContactForm
}

func (a *blogAPI) requests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.uploads) + len(a.created) + len(a.appended) + len(a.contacts)
}

func newBlogAPI(t *testing.T) (*blogAPI, *blog.Client) {
	t.Helper()
	api := &blogAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/upload-image", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = io.Copy(io.Discard, f)
		api.mu.Lock()
		api.uploads = append(api.uploads, hdr.Filename)
		api.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/u/" + hdr.Filename})
	})
	mux.HandleFunc("/blogs", func(w http.ResponseWriter, r *http.Request) {
		var n blog.NewBlog
		_ = json.NewDecoder(r.Body).Decode(&n)
		api.mu.Lock()
		api.created = append(api.created, n)
		api.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"_id": "b1", "title": n.Title})
	})
	mux.HandleFunc("/blogs/b7/sections", func(w http.ResponseWriter, r *http.Request) {
		var s blog.Section
		_ = json.NewDecoder(r.Body).Decode(&s)
		api.mu.Lock()
		api.appended = append(api.appended, s)
		api.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"_id": "b7", "title": "Existing"})
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, r *http.Request) {
		var f blog.ContactForm
		_ = json.NewDecoder(r.Body).Decode(&f)
		api.mu.Lock()
		api.contacts = append(api.contacts, f)
		api.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "c9", "name": f.Name})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, blog.NewClient(srv.URL, blog.WithRequestsPerMinute(60000))
}

func writeDraft(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "draft.md")
	if err := os.WriteFile(path, []byte(testDraft), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cover.png"), []byte("PNG"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPublishDraft(t *testing.T) {
	api, client := newBlogAPI(t)
	var out bytes.Buffer

	err := publishDraft(context.Background(), &out, client, writeDraft(t), publishOptions{category: "ai-agents"})
	if err != nil {
		t.Fatalf("publishDraft() error = %v", err)
	}
	if len(api.uploads) != 1 || api.uploads[0] != "cover.png" {
		t.Errorf("uploads = %v, want only the local cover", api.uploads)
	}
	if len(api.created) != 1 {
		t.Fatalf("created %d articles, want 1", len(api.created))
	}
	got := api.created[0]
	if got.HeroImage != "https://cdn.example.com/u/cover.png" || got.Category != "ai-agents" {
		t.Errorf("created %+v", got)
	}
	if got.Title != "Voice Agents in Banking" || len(got.Sections) != 2 {
		t.Errorf("frontmatter or sections not handled: %+v", got)
	}
	if !strings.Contains(out.String(), "Voice Agents in Banking") || !strings.Contains(out.String(), "b1") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestPublishDraftAppend(t *testing.T) {
	api, client := newBlogAPI(t)
	var out bytes.Buffer

	if err := publishDraft(context.Background(), &out, client, writeDraft(t), publishOptions{to: "b7"}); err != nil {
		t.Fatalf("publishDraft() error = %v", err)
	}
	if len(api.created) != 0 {
		t.Error("appending should not create an article")
	}
	if len(api.appended) != 2 || api.appended[0].Subheading != "Why Now" {
		t.Errorf("appended %+v", api.appended)
	}
	if !strings.Contains(out.String(), "Added 2 sections") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestPublishDraftRejected(t *testing.T) {
	tests := []struct {
		name  string
		draft string
		opts  publishOptions
		want  string
	}{
		{"no category", testDraft, publishOptions{}, "--category"},
		{"no title", "Intro.\n\n## A\n\nx\n", publishOptions{category: "c", hero: "https://x.test/h.png"}, "no title"},
		{"no hero", "# T\n\nIntro.\n", publishOptions{category: "c"}, "hero"},
		{"nothing to append", "# T\n\nIntro.\n", publishOptions{to: "b7"}, "no sections"},
		{"missing image", "# T\n\n![x](gone.png)\n\nIntro.\n", publishOptions{category: "c"}, "unable to open image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, client := newBlogAPI(t)
			path := filepath.Join(t.TempDir(), "draft.md")
			if err := os.WriteFile(path, []byte(tt.draft), 0o600); err != nil {
				t.Fatal(err)
			}
			err := publishDraft(context.Background(), io.Discard, client, path, tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("publishDraft() error = %v, want it to mention %q", err, tt.want)
			}
			if api.requests() != 0 {
				t.Error("a rejected draft should not be published")
			}
		})
	}
}

func TestPublishDraftDryRun(t *testing.T) {
	api, client := newBlogAPI(t)
	var out bytes.Buffer

	opts := publishOptions{category: "ai-agents", dryRun: true}
	if err := publishDraft(context.Background(), &out, client, writeDraft(t), opts); err != nil {
		t.Fatalf("publishDraft() error = %v", err)
	}
	if api.requests() != 0 {
		t.Error("a dry run should not contact the API")
	}
	for _, want := range []string{"Voice Agents in Banking", "AI Agents", "## Why Now", "(1 image)", "## Risks"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSendContact(t *testing.T) {
	api, client := newBlogAPI(t)
	f := blog.ContactForm{Name: "Ada", Email: "ada@example.com", Phone: "123", HowDidYouHear: "podcast"}
	var out bytes.Buffer

	if err := sendContact(context.Background(), strings.NewReader("  Hello from stdin\n"), &out, client, f); err != nil {
		t.Fatalf("sendContact() error = %v", err)
	}
	if len(api.contacts) != 1 || api.contacts[0].Message != "Hello from stdin" {
		t.Errorf("contacts = %+v", api.contacts)
	}
	if !strings.Contains(out.String(), "c9") {
		t.Errorf("unexpected output %q", out.String())
	}

	f.Email = "nope"
	f.Message = "x"
	if err := sendContact(context.Background(), strings.NewReader(""), io.Discard, client, f); err == nil {
		t.Error("an invalid form should fail")
	}
	if len(api.contacts) != 1 {
		t.Error("an invalid form should not be sent")
	}
}
