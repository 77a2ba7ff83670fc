// Extraction of a single participant mention from free text.
//
// The grammar is deliberately small: a mention is `/u/name`, `u/name` or `/user/name`, where the name is
// ASCII letters, digits, underscore and hyphen. Text is NFKC-normalized first, so full-width look-alikes
// (eg, "／ｕ／name") are read the same as their ASCII forms.
package mention

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// Markdown link text can show one name while linking another, so any explicit link is refused.
	ErrExplicitLink     = errors.New("explicit link in mention text")
	ErrNoMention        = errors.New("no participant mention found")
	ErrMultipleMentions = errors.New("multiple distinct participant mentions found")
)

var (
	explicitLinkRegex = regexp.MustCompile(`\[.*\]\(.*\)`)
	// The word boundary keeps "menu/item" out, but counts a mention glued to a previous one or to a host.
	mentionRegex      = regexp.MustCompile(`\b/?u(?:ser)?/([A-Za-z0-9_-]+)`)
	looseMentionRegex = regexp.MustCompile(`(?i)u/[A-Za-z0-9_-]+`)
)

type Mention struct {
	// As written in the text (first occurrence)
	Name string
	// Lower-case form, for comparisons
	Key string
}

func (m Mention) Matches(name string) bool {
	return m.Key != "" && strings.EqualFold(m.Key, name)
}

// Normalize applies the unicode normalization used before any matching.
func Normalize(text string) string {
	return norm.NFKC.String(text)
}

// Parse returns the single participant mentioned in text, or a classified failure.
//
// Repeating the same name (in any casing) is not ambiguous; two different names are.
func Parse(text string) (Mention, error) {
	text = Normalize(text)
	if explicitLinkRegex.MatchString(text) {
		return Mention{}, ErrExplicitLink
	}
	matches := mentionRegex.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return Mention{}, ErrNoMention
	}
	first := Mention{Name: matches[0][1], Key: strings.ToLower(matches[0][1])}
	for _, m := range matches[1:] {
		if !strings.EqualFold(m[1], first.Name) {
			return Mention{}, ErrMultipleMentions
		}
	}
	return first, nil
}

// HasLooseMention reports whether text contains anything mention-shaped. This is more permissive than Parse:
// it accepts explicit links and several names, which older confirmation threads used.
func HasLooseMention(text string) bool {
	return looseMentionRegex.MatchString(Normalize(text))
}

// ContainsWord reports whether text contains word as a case-insensitive substring, after normalization.
func ContainsWord(text, word string) bool {
	if word == "" {
		return true
	}
	return strings.Contains(strings.ToLower(Normalize(text)), strings.ToLower(Normalize(word)))
}
