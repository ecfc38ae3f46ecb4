package normalize

import (
	"strings"
	"unicode"
)

// KeywordSet matches whole-word keyword phrases against free text.
// "netflix" matches "netflix.com" but "power" does not match "powerade".
type KeywordSet struct {
	keywords []string
	phrases  [][]string
	stemmed  bool
}

// NewKeywordSet compiles keywords. Matching order follows the input order.
func NewKeywordSet(keywords []string) KeywordSet {
	ks := KeywordSet{}
	for _, k := range keywords {
		words := wordsOf(k)
		if len(words) == 0 {
			continue
		}
		ks.keywords = append(ks.keywords, strings.ToLower(strings.TrimSpace(k)))
		ks.phrases = append(ks.phrases, words)
	}
	return ks
}

// NewStemmedKeywordSet is NewKeywordSet with a looser match on the last word
// of each phrase: its plurals ("taxes", "loans") always match, and keywords of
// at least minCompoundLen letters also match as the head of a joined word
// ("payrolldep"). "tax" still does not match "taxi".
func NewStemmedKeywordSet(keywords []string) KeywordSet {
	ks := NewKeywordSet(keywords)
	ks.stemmed = true
	return ks
}

const minCompoundLen = 5

// Len returns the number of compiled keywords.
func (ks KeywordSet) Len() int { return len(ks.phrases) }

// Match returns the first keyword found in any of texts.
func (ks KeywordSet) Match(texts ...string) (string, bool) {
	if len(ks.phrases) == 0 {
		return "", false
	}
	words := make([][]string, 0, len(texts))
	for _, t := range texts {
		if w := wordsOf(t); len(w) > 0 {
			words = append(words, w)
		}
	}
	for i, phrase := range ks.phrases {
		for _, w := range words {
			if ks.containsPhrase(w, phrase) {
				return ks.keywords[i], true
			}
		}
	}
	return "", false
}

// wordsOf splits s on anything other than letters, digits, '&' and '+'.
func wordsOf(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&' && r != '+'
	})
}

func (ks KeywordSet) containsPhrase(words, phrase []string) bool {
	last := len(phrase) - 1
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] == p || (ks.stemmed && j == last && stemMatch(words[i+j], p)) {
				continue
			}
			match = false
			break
		}
		if match {
			return true
		}
	}
	return false
}

func stemMatch(word, keyword string) bool {
	rest, ok := strings.CutPrefix(word, keyword)
	if !ok {
		return false
	}
	switch {
	case rest == "s", rest == "es":
		return true
	case len(keyword) >= minCompoundLen:
		return true
	}
	return false
}
