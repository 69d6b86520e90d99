// Package text turns article markdown into narration text and splits it into
// chunks a speech engine can speak one at a time.
package text

import (
	"regexp"
	"strings"
)

// Cleaning patterns, applied in declaration order. Order matters: bold must
// be unwrapped before italic, and paragraph breaks must be collapsed before
// single newlines.
var (
	headingLineRegex = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+.*$`)
	headerRegex      = regexp.MustCompile(`#{1,6}\s`)
	strongRegex      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	emphasisRegex    = regexp.MustCompile(`\*([^*]+)\*`)
	linkRegex        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	codeRegex        = regexp.MustCompile("`{1,3}([^`]+)`{1,3}")
	bulletRegex      = regexp.MustCompile(`(?m)^[ \t]*(?:-[ \t]+|•[ \t]*)`)
	paragraphRegex   = regexp.MustCompile(`\n{2,}`)
	newlineRegex     = regexp.MustCompile(`\n`)
	spaceRegex       = regexp.MustCompile(`[\s\p{Zs}\x{feff}]+`)
)

// Clean strips markdown formatting from raw and normalizes whitespace so the
// result reads naturally when spoken. Paragraph breaks become ". " so they
// are heard as pauses, and heading lines are terminated as sentences of
// their own.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = terminateHeadings(s)
	s = headerRegex.ReplaceAllString(s, "")
	s = strongRegex.ReplaceAllString(s, "$1")
	s = emphasisRegex.ReplaceAllString(s, "$1")
	s = linkRegex.ReplaceAllString(s, "$1")
	s = codeRegex.ReplaceAllString(s, "$1")
	s = bulletRegex.ReplaceAllString(s, "")
	s = paragraphRegex.ReplaceAllString(s, ". ")
	s = newlineRegex.ReplaceAllString(s, " ")
	s = spaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Narration joins an article title and body into the cleaned text that is
// read aloud. The title is spoken as a sentence of its own.
func Narration(title, body string) string {
	title = Clean(title)
	body = Clean(body)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	case endsSentence(title):
		return title + " " + body
	}
	return title + ". " + body
}

// terminateHeadings appends a period to heading lines that don't already end
// a sentence, so "# Intro\nText" is spoken as "Intro. Text".
func terminateHeadings(s string) string {
	return headingLineRegex.ReplaceAllStringFunc(s, func(line string) string {
		line = strings.TrimRight(line, " \t")
		content := strings.TrimLeft(line, " \t#")
		if content == "" || endsSentence(content) {
			return line
		}
		return line + "."
	})
}

func endsSentence(s string) bool {
	switch s[len(s)-1] {
	case '.', '!', '?', ':':
		return true
	}
	return false
}
