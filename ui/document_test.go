package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigairlab/narrate/blog"
)

func TestRemoveFrontmatter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"none", "# Title\n", "# Title\n"},
		{"simple", "---\ntitle: x\n---\n# Title\n", "# Title\n"},
		{"crlf", "---\r\ntitle: x\r\n---\r\nBody\r\n", "Body\r\n"},
		{"unterminated", "---\ntitle: x\n# Title\n", "---\ntitle: x\n# Title\n"},
		{"rule later", "Intro\n---\nMore\n", "Intro\n---\nMore\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(RemoveFrontmatter([]byte(tt.in))); got != tt.want {
				t.Errorf("RemoveFrontmatter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkdownDocument(t *testing.T) {
	doc := MarkdownDocument([]byte("---\ndraft: true\n---\n# Agents at Work\n\nFirst paragraph.\n"))

	if doc.Title != "Agents at Work" {
		t.Errorf("Title = %q", doc.Title)
	}
	if strings.Contains(doc.Body, "Agents at Work") {
		t.Errorf("Body should not repeat the title: %q", doc.Body)
	}
	if !strings.Contains(doc.Body, "First paragraph.") {
		t.Errorf("Body = %q", doc.Body)
	}
	if strings.Contains(doc.Markdown, "draft") {
		t.Error("frontmatter should not be rendered")
	}
	if doc.Note != "Agents at Work" {
		t.Errorf("Note = %q", doc.Note)
	}

	if got := MarkdownDocument([]byte("just text.")).Note; got != "stdin" {
		t.Errorf("untitled Note = %q, want stdin", got)
	}
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.md")
	if err := os.WriteFile(path, []byte("# Draft\n\nBody.\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := FileLoader(path)(context.Background())
	if err != nil {
		t.Fatalf("FileLoader() error = %v", err)
	}
	if doc.LocalPath != path || doc.Note != "draft.md" || doc.Title != "Draft" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.Modtime.IsZero() {
		t.Error("Modtime not set")
	}

	if _, err := FileLoader(filepath.Join(t.TempDir(), "missing.md"))(context.Background()); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestBlogDocument(t *testing.T) {
	b := blog.Blog{
		ID:          "42",
		Title:       "Voice Agents",
		Description: "An overview.",
		Category:    "ai-agents",
		Sections: []blog.Section{
			{Subheading: "Why", Description: "Because."},
		},
	}
	doc := BlogDocument(b, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	if doc.ID != "42" || doc.Title != "Voice Agents" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.Body != blog.NarrationText(b) {
		t.Errorf("Body = %q", doc.Body)
	}
	if !strings.HasPrefix(doc.Markdown, "# Voice Agents") {
		t.Errorf("Markdown = %q", doc.Markdown)
	}
	if doc.Note != "AI Agents · Voice Agents" {
		t.Errorf("Note = %q", doc.Note)
	}
	if doc.LocalPath != "" {
		t.Error("remote documents have no local path")
	}
}
