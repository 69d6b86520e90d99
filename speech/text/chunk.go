package text

import (
	"regexp"
	"strings"
)

// DefaultMaxWords is the default word budget for a single chunk.
const DefaultMaxWords = 50

var sentenceRegex = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Sentences splits text into runs of non-terminator characters followed by
// one or more of ". ! ?". Text after the last terminator is kept as a final
// sentence. Text with no terminator at all is returned as a single sentence.
func Sentences(text string) []string {
	locs := sentenceRegex.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	sentences := make([]string, 0, len(locs)+1)
	for _, loc := range locs {
		sentences = append(sentences, text[loc[0]:loc[1]])
	}
	if rest := text[locs[len(locs)-1][1]:]; strings.TrimSpace(rest) != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// WordCount returns the number of whitespace separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Chunk groups the sentences of text into chunks of at most maxWords words.
//
// A sentence that would push the running chunk over maxWords seals the chunk
// and starts the next one. A chunk that reaches maxWords exactly is sealed
// straight away. A single sentence longer than maxWords becomes its own
// oversized chunk. Empty chunks are dropped, except that empty input yields
// a single empty chunk.
func Chunk(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	var (
		chunks  []string
		current string
	)
	for _, sentence := range Sentences(text) {
		sentence = strings.TrimSpace(sentence)
		words := WordCount(sentence)
		have := WordCount(current)

		if have > 0 && have+words > maxWords {
			chunks = append(chunks, current)
			current = sentence
			continue
		}

		if current != "" && sentence != "" {
			current += " "
		}
		current += sentence
		if WordCount(current) >= maxWords {
			chunks = append(chunks, current)
			current = ""
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return out
}
