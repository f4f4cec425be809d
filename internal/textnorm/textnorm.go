// Package textnorm canonicalizes chat input before it is matched against
// commands and FAQ keywords.
package textnorm

import (
	"strings"
)

// stripped punctuation, full-width and half-width
const punctuation = "，。！？、,.!?"

type synonym struct {
	pattern     string
	replacement string
}

// Rules run top to bottom and each one sees the output of the previous ones,
// so "今日哪一天" ends up as "今天是哪一天". Keep the order.
var synonyms = []synonym{
	{"什么", "什麼"},
	{"今日", "今天"},
	{"今天哪一天", "今天是哪一天"},
	{"今天幾天", "今天第幾天"},
	{"咖啡因", "咖啡"},
	{"蛋白質", "蛋白"},
	{"宵夜", "消夜"},
	{"健身", "運動"},
	{"便秘", "排便"},
	{"拉肚子", "腹瀉"},
	{"酒精", "喝酒"},
	{"補水", "喝水"},
	{"生理期", "月經"},
}

var punctuationReplacer = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len([]rune(punctuation)))
	for _, r := range punctuation {
		pairs = append(pairs, string(r), "")
	}
	return strings.NewReplacer(pairs...)
}()

// Normalize lowercases text, collapses whitespace runs into one space,
// drops punctuation and trims the result.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = strings.Join(strings.Fields(text), " ")
	text = punctuationReplacer.Replace(text)
	return strings.TrimSpace(text)
}

// ApplySynonyms folds known variants onto a canonical spelling.
func ApplySynonyms(text string) string {
	for _, s := range synonyms {
		text = strings.ReplaceAll(text, s.pattern, s.replacement)
	}
	return text
}

// Fold is Normalize followed by ApplySynonyms.
func Fold(text string) string {
	return ApplySynonyms(Normalize(text))
}
