// Package token provides the heuristic token estimator used for history
// budgeting. It is deliberately not a real tokenizer: the completion
// provider never sees these numbers, they only bound how much history is
// packed into a prompt. The exact weights are load-bearing — the budget
// truncation tests depend on them.
package token

import (
	"math"
	"unicode"
)

// Weights applied per character class. CJK ideographs typically encode to
// more than one model token each; ASCII words to roughly one; everything
// else (punctuation, whitespace, symbols) to a fraction.
const (
	cjkWeight  = 2.0
	wordWeight = 1.3
	restWeight = 0.5
)

// Estimate returns an approximate token count for text. Deterministic and
// side-effect free.
//
// Runes are partitioned into three disjoint classes: CJK ideographs, ASCII
// word runs, and the rest. CJK and "rest" are weighted per rune; word runs
// are weighted per run ("hello" counts once, not five times). The weighted
// sum is rounded up to the nearest integer.
func Estimate(text string) int {
	if text == "" {
		return 0
	}

	var cjk, words, rest int
	inWord := false

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			cjk++
			inWord = false
		case isASCIIWordRune(r):
			if !inWord {
				words++
				inWord = true
			}
		default:
			rest++
			inWord = false
		}
	}

	return int(math.Ceil(cjkWeight*float64(cjk) + wordWeight*float64(words) + restWeight*float64(rest)))
}

// isASCIIWordRune reports whether r belongs to an ASCII word run
// (letters, digits, underscore — the \w class restricted to ASCII).
func isASCIIWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '_'
}
