// Package faq answers messages from the static FAQ by keyword scoring.
package faq

import (
	"strings"
	"unicode/utf8"

	"github.com/xaenox/slimday-bot/internal/models"
	"github.com/xaenox/slimday-bot/internal/textnorm"
)

// maxKeywordScore caps how much a single keyword can contribute.
const maxKeywordScore = 3

type entry struct {
	keywords []string
	answer   string
}

// Matcher picks the FAQ answer whose keywords best cover a message.
type Matcher struct {
	entries []entry
}

// NewMatcher folds every keyword once up front. Items without keywords or
// without an answer are dropped.
func NewMatcher(items []models.FAQItem) *Matcher {
	m := &Matcher{entries: make([]entry, 0, len(items))}
	for _, item := range items {
		if len(item.Keywords) == 0 || item.Answer == "" {
			continue
		}
		e := entry{answer: item.Answer}
		for _, kw := range item.Keywords {
			if folded := textnorm.Fold(kw); folded != "" {
				e.keywords = append(e.keywords, folded)
			}
		}
		if len(e.keywords) == 0 {
			continue
		}
		m.entries = append(m.entries, e)
	}
	return m
}

// KeywordScore is min(3, ceil(len/2)) over the keyword's rune length, so
// longer keywords count more but no single one dominates.
func KeywordScore(folded string) int {
	n := utf8.RuneCountInString(folded)
	score := (n + 1) / 2
	if score > maxKeywordScore {
		return maxKeywordScore
	}
	return score
}

// Match returns the answer of the best scoring item. The first item wins a
// tie. Nothing matches unless the best score is at least 1.
func (m *Matcher) Match(text string) (string, bool) {
	input := textnorm.Fold(text)
	if input == "" {
		return "", false
	}

	bestScore := 0
	bestAnswer := ""
	for _, e := range m.entries {
		score := 0
		for _, kw := range e.keywords {
			if strings.Contains(input, kw) {
				score += KeywordScore(kw)
			}
		}
		if score > bestScore {
			bestScore = score
			bestAnswer = e.answer
		}
	}

	if bestScore < 1 {
		return "", false
	}
	return bestAnswer, true
}

// Len is the number of usable items.
func (m *Matcher) Len() int {
	return len(m.entries)
}
