package ui

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bigairlab/narrate/blog"
	"github.com/bigairlab/narrate/speech/text"
)

// Document is an article ready to be displayed and read aloud.
type Document struct {
	// ID of the remote article. Empty for local files and stdin.
	ID string

	// Title and Body are handed to the speech controller.
	Title string
	Body  string

	// Markdown is what the viewport renders.
	Markdown string

	// Note is shown in the status bar.
	Note string

	// LocalPath is set when the document was read from disk.
	LocalPath string
	Modtime   time.Time
}

// Loader fetches the latest version of a document.
type Loader func(ctx context.Context) (Document, error)

// BlogLoader loads the article id through client.
func BlogLoader(client *blog.Client, id string) Loader {
	return func(ctx context.Context) (Document, error) {
		b, err := client.Get(ctx, id)
		if err != nil {
			return Document{}, err
		}
		return BlogDocument(b, time.Now()), nil
	}
}

// BlogDocument converts a fetched article.
func BlogDocument(b blog.Blog, now time.Time) Document {
	note := b.Title
	if b.Category != "" {
		note = blog.PrettifySlug(b.Category) + " · " + note
	}
	return Document{
		ID:       b.ID,
		Title:    b.Title,
		Body:     blog.NarrationText(b),
		Markdown: blog.Markdown(b, now),
		Note:     note,
	}
}

// FileLoader reads a local markdown file on every call.
func FileLoader(path string) Loader {
	return func(context.Context) (Document, error) {
		info, err := os.Stat(path)
		if err != nil {
			return Document{}, fmt.Errorf("unable to stat file: %w", err)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("unable to read file: %w", err)
		}
		doc := MarkdownDocument(b)
		doc.LocalPath = path
		doc.Note = filepath.Base(path)
		doc.Modtime = info.ModTime()
		return doc, nil
	}
}

// StaticLoader always returns doc.
func StaticLoader(doc Document) Loader {
	return func(context.Context) (Document, error) {
		return doc, nil
	}
}

// MarkdownDocument splits raw markdown into a title and a narration body.
func MarkdownDocument(src []byte) Document {
	src = RemoveFrontmatter(src)
	title := text.Title(src)
	note := title
	if note == "" {
		note = "stdin"
	}
	return Document{
		Title:    title,
		Body:     string(text.StripTitle(src)),
		Markdown: string(src),
		Note:     note,
	}
}

// RemoveFrontmatter drops a leading YAML frontmatter block.
func RemoveFrontmatter(content []byte) []byte {
	const delim = "---"
	if !bytes.HasPrefix(content, []byte(delim+"\n")) && !bytes.HasPrefix(content, []byte(delim+"\r\n")) {
		return content
	}
	rest := content[len(delim):]
	rest = bytes.TrimLeft(rest, "\r")
	rest = rest[1:]
	for i := 0; i < len(rest); {
		end := bytes.IndexByte(rest[i:], '\n')
		line := rest[i:]
		if end >= 0 {
			line = rest[i : i+end]
		}
		if string(bytes.TrimRight(line, "\r")) == delim {
			if end < 0 {
				return nil
			}
			return rest[i+end+1:]
		}
		if end < 0 {
			break
		}
		i += end + 1
	}
	return content
}
