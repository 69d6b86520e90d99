package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bigairlab/narrate/blog"
	"github.com/bigairlab/narrate/ui"
)

type publishOptions struct {
	category string
	hero     string
	to       string
	dryRun   bool
}

var (
	publishOpts publishOptions

	publishCmd = &cobra.Command{
		Use:   "publish FILE",
		Short: "Publish a markdown draft",
		Long: paragraph(fmt.Sprintf("\n%s a markdown draft to the blog. The first heading is the title, "+
			"the introduction is the description and every second-level heading starts a section. "+
			"Local images are uploaded first. With --to, the draft's sections are appended to an existing article.",
			keyword("Publish"))),
		Example: paragraph("narrate publish draft.md --category ai-agents\n" +
			"narrate publish draft.md --category ai-agents --hero cover.png\n" +
			"narrate publish follow-up.md --to 665f1c2e9b1d"),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newBlogClient()
			if err != nil {
				return err
			}
			return publishDraft(cmd.Context(), cmd.OutOrStdout(), client, expandPath(args[0]), publishOpts)
		},
	}
)

func init() {
	publishCmd.Flags().StringVarP(&publishOpts.category, "category", "c", "", "category slug of the new article")
	publishCmd.Flags().StringVar(&publishOpts.hero, "hero", "", "hero image path or URL (default: first image above the first section)")
	publishCmd.Flags().StringVar(&publishOpts.to, "to", "", "append the sections to this article instead of creating one")
	publishCmd.Flags().BoolVarP(&publishOpts.dryRun, "dry-run", "n", false, "print what would be published without contacting the API")
}

func publishDraft(ctx context.Context, w io.Writer, client *blog.Client, path string, opts publishOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read draft: %w", err)
	}
	n := blog.ParseDraft(ui.RemoveFrontmatter(data))
	if opts.hero != "" {
		n.HeroImage = opts.hero
	}
	n.Category = opts.category

	if opts.to != "" {
		if len(n.Sections) == 0 {
			return fmt.Errorf("%s has no sections to append", path)
		}
	} else if err := precheck(n); err != nil {
		return err
	}

	if opts.dryRun {
		printDraft(w, n, opts.to)
		return nil
	}

	dir := filepath.Dir(path)
	if err := n.MapImages(func(ref string) (string, error) {
		return uploadImage(ctx, client, dir, ref)
	}); err != nil {
		return err
	}

	if opts.to != "" {
		var b blog.Blog
		for _, s := range n.Sections {
			if b, err = client.AddSection(ctx, opts.to, s); err != nil {
				return fmt.Errorf("unable to add section %q: %w", s.Subheading, err)
			}
		}
		fmt.Fprintf(w, "Added %d %s to %s\n", len(n.Sections),
			plural(len(n.Sections), "section", "sections"), keyword(b.Title))
		return nil
	}

	b, err := client.Create(ctx, n)
	if err != nil {
		return fmt.Errorf("unable to publish: %w", err)
	}
	fmt.Fprintf(w, "Published %s\n  %s\n", keyword(b.Title), subtle(b.ID))
	return nil
}

// precheck reports missing fields before any image is uploaded. The hero
// image may still be a local path here.
func precheck(n blog.NewBlog) error {
	switch {
	case n.Title == "":
		return errors.New("draft has no title: start it with a \"# \" heading")
	case n.Description == "":
		return errors.New("draft has no introduction to use as the description")
	case n.Category == "":
		return errors.New("a --category is required")
	case n.HeroImage == "":
		return errors.New("draft has no hero image: add one above the first section or pass --hero")
	}
	return nil
}

// uploadImage returns ref unchanged when it is already a URL, otherwise it
// uploads the file it names, relative to dir.
func uploadImage(ctx context.Context, client *blog.Client, dir, ref string) (string, error) {
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return ref, nil
	}
	path := expandPath(ref)
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("unable to open image: %w", err)
	}
	defer f.Close() //nolint:errcheck

	u, err := client.UploadImage(ctx, path, f)
	if err != nil {
		return "", fmt.Errorf("unable to upload %s: %w", ref, err)
	}
	log.Debug("uploaded image", "path", path, "url", u)
	return u, nil
}

func printDraft(w io.Writer, n blog.NewBlog, to string) {
	if to == "" {
		fmt.Fprintf(w, "%s\n  %s\n", keyword(n.Title), subtle(strings.Join([]string{
			blog.PrettifySlug(n.Category), n.HeroImage, blog.ReadTime(n.Description + " " + sectionText(n.Sections)),
		}, " · ")))
	} else {
		fmt.Fprintf(w, "%s %s\n", subtle("Append to"), keyword(to))
	}
	for _, s := range n.Sections {
		fmt.Fprintf(w, "  ## %s", s.Subheading)
		if len(s.Image) > 0 {
			fmt.Fprint(w, subtle(fmt.Sprintf(" (%d %s)", len(s.Image), plural(len(s.Image), "image", "images"))))
		}
		fmt.Fprintln(w)
	}
	if len(n.Sources) > 0 {
		fmt.Fprintln(w, subtle(fmt.Sprintf("  %d %s", len(n.Sources), plural(len(n.Sources), "source", "sources"))))
	}
}

func sectionText(sections []blog.Section) string {
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = s.Subheading + " " + s.Description
	}
	return strings.Join(parts, " ")
}
