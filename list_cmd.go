package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/muesli/gitcha"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/bigairlab/narrate/blog"
)

var (
	listCategory string
	listFilter   string
	listDir      string

	markdownExtensions = []string{
		"*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown",
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List articles",
		Long: paragraph(fmt.Sprintf("\n%s published articles, or local markdown drafts with --dir.",
			keyword("List"))),
		Example: paragraph("narrate list\nnarrate list --category ai-agents --filter voice\nnarrate list --dir ~/drafts"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listDir != "" {
				return listLocal(cmd.OutOrStdout(), expandPath(listDir), listFilter)
			}
			client, err := newBlogClient()
			if err != nil {
				return err
			}
			blogs, err := client.All(cmd.Context(), listCategory)
			if err != nil {
				return fmt.Errorf("unable to list articles: %w", err)
			}
			printBlogs(cmd.OutOrStdout(), filterBlogs(blogs, listFilter), time.Now())
			if listCategory == "" && listFilter == "" {
				printCategories(cmd.OutOrStdout(), blogs)
			}
			return nil
		},
	}
)

func init() {
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "only list articles in this category")
	listCmd.Flags().StringVarP(&listFilter, "filter", "f", "", "fuzzy filter on titles")
	listCmd.Flags().StringVarP(&listDir, "dir", "d", "", "list markdown drafts under this directory")
}

// blogSource adapts articles for fuzzy matching on their titles.
type blogSource []blog.Blog

func (s blogSource) String(i int) string { return s[i].Title }
func (s blogSource) Len() int            { return len(s) }

// filterBlogs returns the articles matching query, best match first. An
// empty query keeps everything in its original order.
func filterBlogs(blogs []blog.Blog, query string) []blog.Blog {
	if query == "" {
		return blogs
	}
	matches := fuzzy.FindFrom(query, blogSource(blogs))
	out := make([]blog.Blog, 0, len(matches))
	for _, m := range matches {
		out = append(out, blogs[m.Index])
	}
	return out
}

func printBlogs(w io.Writer, blogs []blog.Blog, now time.Time) {
	if len(blogs) == 0 {
		fmt.Fprintln(w, subtle("No articles found."))
		return
	}
	for _, b := range blogs {
		meta := []string{b.ID}
		if b.Category != "" {
			meta = append(meta, blog.PrettifySlug(b.Category))
		}
		if t, ok := b.Published(); ok {
			meta = append(meta, blog.TimeSince(t, now))
		}
		meta = append(meta, blog.ReadTime(blog.BodyText(b)))
		fmt.Fprintf(w, "%s\n  %s\n", keyword(b.Title), subtle(strings.Join(meta, " · ")))
	}
}

func printCategories(w io.Writer, blogs []blog.Blog) {
	cats := blog.Categories(blogs)
	if len(cats) == 0 {
		return
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c + subtle(" ("+blog.PrettifySlug(c)+")")
	}
	fmt.Fprintf(w, "\n%s %s\n", keyword("Categories:"), strings.Join(names, ", "))
}

// draft is a local markdown file found by gitcha.
type draft struct {
	path    string
	size    int64
	modtime time.Time
}

func findDrafts(dir string) ([]draft, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}
	ch, err := gitcha.FindFilesExcept(abs, markdownExtensions, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to search %s: %w", dir, err)
	}

	var drafts []draft
	for res := range ch {
		rel, err := filepath.Rel(abs, res.Path)
		if err != nil {
			rel = res.Path
		}
		drafts = append(drafts, draft{
			path:    rel,
			size:    res.Info.Size(),
			modtime: res.Info.ModTime(),
		})
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].modtime.After(drafts[j].modtime)
	})
	return drafts, nil
}

func filterDrafts(drafts []draft, query string) []draft {
	if query == "" {
		return drafts
	}
	paths := make([]string, len(drafts))
	for i, d := range drafts {
		paths[i] = d.path
	}
	matches := fuzzy.Find(query, paths)
	out := make([]draft, 0, len(matches))
	for _, m := range matches {
		out = append(out, drafts[m.Index])
	}
	return out
}

func listLocal(w io.Writer, dir, query string) error {
	if st, err := os.Stat(dir); err != nil {
		return fmt.Errorf("unable to stat %s: %w", dir, err)
	} else if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	drafts, err := findDrafts(dir)
	if err != nil {
		return err
	}
	drafts = filterDrafts(drafts, query)
	if len(drafts) == 0 {
		fmt.Fprintln(w, subtle("No drafts found."))
		return nil
	}
	for _, d := range drafts {
		fmt.Fprintf(w, "%s\n  %s\n", keyword(d.path), subtle(fmt.Sprintf("%s · %s",
			humanize.Bytes(uint64(max(d.size, 0))), humanize.Time(d.modtime)))) //nolint:gosec
	}
	return nil
}
