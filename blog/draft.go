package blog

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

var (
	imageRegex   = regexp.MustCompile(`!\[[^\]]*\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)
	linkRegex    = regexp.MustCompile(`\[([^\]]+)\]\(\s*<?([^)\s>]+)>?\s*\)`)
	bareURLRegex = regexp.MustCompile(`https?://\S+`)
)

// sourcesHeading names the section whose links become the article's sources.
const sourcesHeading = "sources"

// ParseDraft reads a markdown draft laid out like a published article:
// a "# " title, an introduction used as the description, and one "## "
// section per subheading. Images become the hero image (above the first
// section) or section images. A "## Sources" section lists references.
// Headings inside fenced code blocks are ignored.
func ParseDraft(src []byte) NewBlog {
	var (
		n       NewBlog
		intro   []string
		current *Section
		body    []string
		inFence bool
		fence   string
		sources bool
	)

	flush := func() {
		text := strings.Join(body, "\n")
		body = nil
		switch {
		case sources:
			n.Sources = append(n.Sources, parseSources(text)...)
		case current != nil:
			current.Image, text = extractImages(text)
			current.Description = strings.TrimSpace(text)
			n.Sections = append(n.Sections, *current)
		}
		current, sources = nil, false
	}

	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if marker := fenceMarker(trimmed); marker != "" && (!inFence || strings.HasPrefix(trimmed, fence)) {
			inFence = !inFence
			fence = marker
		} else if !inFence {
			switch {
			case n.Title == "" && current == nil && !sources && strings.HasPrefix(trimmed, "# "):
				n.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
				continue
			case strings.HasPrefix(trimmed, "## "):
				if current != nil || sources {
					flush()
				}
				heading := strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))
				if strings.EqualFold(heading, sourcesHeading) {
					sources = true
				} else {
					current = &Section{Subheading: heading}
				}
				continue
			}
		}

		if current != nil || sources {
			body = append(body, line)
		} else {
			intro = append(intro, line)
		}
	}
	if current != nil || sources {
		flush()
	}

	images, text := extractImages(strings.Join(intro, "\n"))
	if len(images) > 0 {
		n.HeroImage = images[0]
	}
	n.Description = strings.TrimSpace(text)
	return n
}

func fenceMarker(line string) string {
	for _, m := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, m) {
			return m
		}
	}
	return ""
}

// extractImages removes image references from text and returns their
// targets in order.
func extractImages(text string) (Images, string) {
	var images Images
	for _, m := range imageRegex.FindAllStringSubmatch(text, -1) {
		images = append(images, m[1])
	}
	text = imageRegex.ReplaceAllString(text, "")
	return images, text
}

// parseSources reads markdown links, or bare URLs, one reference each.
func parseSources(text string) []Source {
	var out []Source
	for _, line := range strings.Split(text, "\n") {
		if m := linkRegex.FindStringSubmatch(line); m != nil {
			out = append(out, Source{Title: strings.TrimSpace(m[1]), URL: m[2]})
			continue
		}
		if u := bareURLRegex.FindString(line); u != "" {
			out = append(out, Source{Title: u, URL: u})
		}
	}
	return out
}

// MapImages replaces the hero image and every section image with the
// result of fn, stopping at the first error.
func (n *NewBlog) MapImages(fn func(string) (string, error)) error {
	if n.HeroImage != "" {
		u, err := fn(n.HeroImage)
		if err != nil {
			return err
		}
		n.HeroImage = u
	}
	for i := range n.Sections {
		for j, img := range n.Sections[i].Image {
			u, err := fn(img)
			if err != nil {
				return err
			}
			n.Sections[i].Image[j] = u
		}
	}
	return nil
}
