package patent

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTermLength = 9

// ExtractTechnicalTerms は分析結果から技術用語らしい語を抜き出す
// 全て大文字の語 (略語) か、9文字以上の語を出現順に重複なく返す
func ExtractTechnicalTerms(text string) []string {
	seen := make(map[string]bool)
	terms := []string{}

	for _, field := range strings.Fields(text) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if word == "" || seen[word] {
			continue
		}
		if isAcronym(word) || utf8.RuneCountInString(word) >= minTermLength {
			seen[word] = true
			terms = append(terms, word)
		}
	}

	return terms
}

func isAcronym(word string) bool {
	hasLetter := false
	for _, r := range word {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
