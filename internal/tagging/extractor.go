// Package tagging derives a bounded tag set for a post from its plain text.
package tagging

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

const (
	// MaxTags caps the number of tags attached to a post.
	MaxTags = 10
	// maxPhraseTokens is the longest phrase considered, "test driven development" style terms included.
	maxPhraseTokens = 4
)

// Extractor matches keyword phrases found in text against a Vocabulary.
type Extractor struct {
	vocab *Vocabulary
}

// NewExtractor returns an extractor for vocab, or DefaultVocabulary when nil.
func NewExtractor(vocab *Vocabulary) *Extractor {
	if vocab == nil {
		vocab = DefaultVocabulary
	}
	return &Extractor{vocab: vocab}
}

// Vocabulary returns the vocabulary the extractor matches against.
func (e *Extractor) Vocabulary() *Vocabulary { return e.vocab }

// Extract returns the sorted, deduplicated vocabulary tags found in text,
// at most MaxTags of them.
func (e *Extractor) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return []string{}
	}
	return e.match(candidates(doc.Tokens()))
}

func (e *Extractor) match(phrases []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range phrases {
		tag := Normalize(p)
		if !e.vocab.Contains(tag) {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	if len(out) > MaxTags {
		out = out[:MaxTags]
	}
	return out
}

// candidates groups consecutive keyword tokens into runs and emits every
// contiguous phrase of up to maxPhraseTokens tokens within each run.
func candidates(tokens []prose.Token) []string {
	var (
		phrases []string
		run     []string
	)
	flush := func() {
		for i := range run {
			for n := 1; n <= maxPhraseTokens && i+n <= len(run); n++ {
				phrases = append(phrases, strings.Join(run[i:i+n], " "))
			}
		}
		run = run[:0]
	}

	for _, tok := range tokens {
		switch {
		case isPlusRun(tok.Text) && len(run) > 0:
			// the tokenizer splits "C++" into "C" "+" "+"
			run[len(run)-1] += tok.Text
		case isKeyword(tok):
			run = append(run, tok.Text)
		default:
			flush()
		}
	}
	flush()
	return phrases
}

func isKeyword(tok prose.Token) bool {
	switch {
	case strings.HasPrefix(tok.Tag, "NN"),
		strings.HasPrefix(tok.Tag, "JJ"),
		strings.HasPrefix(tok.Tag, "RB"),
		tok.Tag == "VBG":
		return true
	}
	return isAcronym(tok.Text)
}

// isAcronym reports tokens such as "SQL", "API" or "CI/CD" (uppercase letters, at least two).
func isAcronym(s string) bool {
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			letters++
		case r == '.' || r == '/' || unicode.IsDigit(r):
		default:
			return false
		}
	}
	return letters >= 2
}

func isPlusRun(s string) bool {
	return s != "" && strings.Trim(s, "+") == ""
}

// Normalize maps a phrase onto vocabulary form: lowercase, dots removed,
// "+" spelled out and words joined by hyphens.
func Normalize(phrase string) string {
	s := strings.ToLower(strings.TrimSpace(phrase))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "+", "plus")
	return strings.Join(strings.Fields(s), "-")
}
