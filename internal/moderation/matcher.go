package moderation

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Matcher finds banned words in message text. Matching is by whole token and
// case-insensitive; a banned phrase containing whitespace can never match.
type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

// FindViolations returns the banned words present in text as whole tokens, in
// the order of banned and without duplicates.
func (m *Matcher) FindViolations(text string, banned []string) []string {
	if strings.TrimSpace(text) == "" || len(banned) == 0 {
		return nil
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	caser := cases.Fold()
	var found []string
	seen := make(map[string]struct{}, len(banned))
	for _, word := range banned {
		folded := caser.String(word)
		if _, ok := tokens[folded]; !ok {
			continue
		}
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		found = append(found, word)
	}
	return found
}

// Tokenize returns the set of case-folded tokens of text. Every rune that is not
// a letter, digit, underscore or apostrophe separates tokens.
func Tokenize(text string) map[string]struct{} {
	normalized := strings.Map(func(r rune) rune {
		if isTokenRune(r) {
			return r
		}
		return ' '
	}, text)

	fields := strings.Fields(cases.Fold().String(normalized))
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return tokens
}

// Matchable reports whether word, once normalized, is exactly one token and so
// can ever be found by FindViolations. "spam!" or "f*ck" are not.
func Matchable(word string) bool {
	w := NormalizeWord(word)
	tokens := Tokenize(w)
	_, ok := tokens[w]
	return ok && len(tokens) == 1
}

// NormalizeWord folds a word for storage in a banned-word list.
func NormalizeWord(word string) string {
	return cases.Fold().String(strings.TrimSpace(word))
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\''
}
