package blog

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// NarrationText is what gets read aloud after the title: the description,
// then every section as "subheading. description".
func NarrationText(b Blog) string {
	var sb strings.Builder
	if b.Description != "" {
		sb.WriteString(b.Description)
		sb.WriteByte(' ')
	}
	for _, s := range b.Sections {
		if s.Subheading != "" {
			sb.WriteString(s.Subheading)
			sb.WriteString(". ")
		}
		if s.Description != "" {
			sb.WriteString(s.Description)
			sb.WriteByte(' ')
		}
	}
	return strings.TrimSpace(sb.String())
}

// BodyText joins the description and section descriptions, the text the
// reading time is estimated from.
func BodyText(b Blog) string {
	parts := make([]string, 0, len(b.Sections))
	for _, s := range b.Sections {
		parts = append(parts, s.Description)
	}
	return b.Description + "\n" + strings.Join(parts, "\n")
}

// wordsPerMinute is the reading speed used by ReadTime.
const wordsPerMinute = 200

// ReadTime estimates the reading time of text, at least one minute.
func ReadTime(text string) string {
	words := len(strings.Fields(text))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d minutes read", minutes)
}

// TimeSince describes how long ago t was, relative to now.
func TimeSince(t, now time.Time) string {
	diff := now.Sub(t)
	minutes := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))
	months := days / 30

	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return plural(minutes, "minute") + " ago"
	case hours < 24:
		return plural(hours, "hour") + " ago"
	case days < 30:
		return plural(days, "day") + " ago"
	case months < 6:
		return plural(months, "month") + " ago"
	}
	return "More than 6 months ago"
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatDate renders t as "Jan 02, 2006".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 02, 2006")
}

var smallWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "but": true,
	"by": true, "for": true, "in": true, "of": true, "on": true, "or": true,
	"the": true, "to": true, "with": true,
}

var acronyms = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`\bAi\b`), "AI"},
	{regexp.MustCompile(`\bKyc\b`), "KYC"},
	{regexp.MustCompile(`\bApi\b`), "API"},
	{regexp.MustCompile(`\bApis\b`), "APIs"},
	{regexp.MustCompile(`\bRegtech\b`), "RegTech"},
}

// PrettifySlug turns a URL slug into a title: dashes become spaces, words
// are capitalised except small words after the first, and known acronyms
// are restored.
func PrettifySlug(slug string) string {
	if slug == "" {
		return ""
	}
	if s, err := url.PathUnescape(slug); err == nil {
		slug = s
	}
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		lower := strings.ToLower(w)
		if i != 0 && smallWords[lower] {
			words[i] = lower
			continue
		}
		words[i] = capitalize(lower)
	}

	title := strings.Join(words, " ")
	for _, a := range acronyms {
		title = a.re.ReplaceAllString(title, a.with)
	}
	return title
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Categories returns the distinct categories of blogs, sorted.
func Categories(blogs []Blog) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range blogs {
		if b.Category != "" && !seen[b.Category] {
			seen[b.Category] = true
			out = append(out, b.Category)
		}
	}
	sort.Strings(out)
	return out
}

// FilterCategory returns the blogs in category. An empty category keeps all.
func FilterCategory(blogs []Blog, category string) []Blog {
	if category == "" {
		return blogs
	}
	var out []Blog
	for _, b := range blogs {
		if b.Category == category {
			out = append(out, b)
		}
	}
	return out
}

// ShareURL is the public link to an article on site.
func ShareURL(site, id string) string {
	return strings.TrimRight(site, "/") + "/blog/" + url.PathEscape(id)
}

// Source is one reference cited by an article.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SourceList decodes the free-form sources field. It understands a single
// string, a list of strings and a list of {title|name, url|link} objects.
func (b Blog) SourceList() []Source {
	if len(b.Sources) == 0 {
		return nil
	}

	var one string
	if err := json.Unmarshal(b.Sources, &one); err == nil {
		if one = strings.TrimSpace(one); one != "" {
			return []Source{{URL: one}}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(b.Sources, &many); err == nil {
		var out []Source
		for _, s := range many {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, Source{URL: s})
			}
		}
		return out
	}

	var objs []map[string]any
	if err := json.Unmarshal(b.Sources, &objs); err != nil {
		return nil
	}
	var out []Source
	for _, o := range objs {
		s := Source{Title: firstString(o, "title", "name"), URL: firstString(o, "url", "link")}
		if s.Title != "" || s.URL != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Markdown renders the article for display.
func Markdown(b Blog, now time.Time) string {
	var sb strings.Builder

	title := b.Title
	if title == "" {
		title = PrettifySlug(b.ID)
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)

	meta := []string{}
	if b.Category != "" {
		meta = append(meta, b.Category)
	}
	if t, ok := b.Published(); ok {
		meta = append(meta, FormatDate(t), TimeSince(t, now))
	}
	meta = append(meta, ReadTime(BodyText(b)))
	fmt.Fprintf(&sb, "*%s*\n\n", strings.Join(meta, " · "))

	if b.Description != "" {
		sb.WriteString(b.Description)
		sb.WriteString("\n\n")
	}
	for _, s := range b.Sections {
		if s.Subheading != "" {
			fmt.Fprintf(&sb, "## %s\n\n", s.Subheading)
		}
		for _, img := range s.Image {
			fmt.Fprintf(&sb, "![%s](%s)\n\n", s.Subheading, img)
		}
		if s.Description != "" {
			sb.WriteString(s.Description)
			sb.WriteString("\n\n")
		}
	}

	if sources := b.SourceList(); len(sources) > 0 {
		sb.WriteString("## Sources\n\n")
		for _, s := range sources {
			switch {
			case s.Title != "" && s.URL != "":
				fmt.Fprintf(&sb, "- [%s](%s)\n", s.Title, s.URL)
			case s.URL != "":
				fmt.Fprintf(&sb, "- <%s>\n", s.URL)
			default:
				fmt.Fprintf(&sb, "- %s\n", s.Title)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}
