package token

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		// Two CJK ideographs at ×2 each.
		{"cjk only", "你好", 4},
		// One word run at ×1.3, ceiling applied.
		{"single word", "hello", 2},
		// 2×2 (CJK) + 1×1.3 (one word run) = 5.3 → 6.
		{"mixed cjk and word", "你好hello", 6},
		// Three word runs (1.3 each) + two spaces (0.5 each) = 4.9 → 5.
		{"sentence", "one two three", 5},
		// Digits and underscore extend a word run instead of starting one.
		{"identifier", "snake_case_2", 2},
		// Punctuation counts per rune at ×0.5.
		{"punctuation only", "!?.,;", 3},
		// 10 CJK = 20, no rounding needed.
		{"cjk string", strings.Repeat("漢", 10), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	s := "你好 world, this is 混合 content with 123 numbers!"
	first := Estimate(s)
	for i := 0; i < 100; i++ {
		if got := Estimate(s); got != first {
			t.Fatalf("Estimate not deterministic: %d then %d", first, got)
		}
	}
}

func TestEstimate_CJKDoublesPerRune(t *testing.T) {
	// A string of n ideographs must score exactly 2n.
	for n := 1; n <= 50; n++ {
		s := strings.Repeat("语", n)
		if got := Estimate(s); got != 2*n {
			t.Fatalf("Estimate(%d ideographs) = %d, want %d", n, got, 2*n)
		}
	}
}

func TestEstimate_WordRunsCountOnce(t *testing.T) {
	// A single long word must cost the same as a single short one.
	if Estimate("a") != Estimate("antidisestablishmentarianism") {
		t.Error("word runs should be weighted per run, not per rune")
	}
}
