package textnorm

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \t\n ", ""},
		{"lower-cases", "Hello World", "hello world"},
		{"strips http url", "FREE MONEY!!! Click http://x.co now", "free money!!! click now"},
		{"strips www url", "Visit www.spam.example/deal today", "visit today"},
		{"escaped newline", `Line one\nLine two`, "line one line two"},
		{"special characters", "Price: $100 #deal (50% off)", "price 100 deal 50 off"},
		{"punctuation kept", "Really?! Yes, now.", "really?! yes, now."},
		{"only disallowed", "@@@ ### $$$", ""},
		{"non-ascii letters dropped", "Café résumé", "caf rsum"},
		{"collapses whitespace", "a\t\tb\n\n c  ", "a b c"},
		{"non-breaking space", "a\u00a0\u00a0b", "a b"},
		{"url formed after filtering", "ht$tpfoo bar", "bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.expected {
				t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

var idempotenceSeeds = []string{
	"",
	"FREE MONEY!!! Click http://x.co now",
	"Subject: Re: meeting\\nSee you at 10am, ok?",
	"ht$tp$foo www",
	"w$ww.example h ttpx",
	"MiXeD CaSe\u3000TEXT!!!",
	"\x1cseparated\x1ftext",
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range idempotenceSeeds {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func FuzzNormalizeIdempotent(f *testing.F) {
	for _, seed := range idempotenceSeeds {
		f.Add(seed)
	}
	f.Add("\xff\xfehttp\x00www")

	f.Fuzz(func(t *testing.T, s string) {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", s, once, twice)
		}
	})
}

func TestWordCount(t *testing.T) {
	testCases := []struct {
		text     string
		expected int
	}{
		{"", 0},
		{"one", 1},
		{"free money now", 3},
		{"  spaced   out  ", 2},
	}

	for _, tc := range testCases {
		if got := WordCount(tc.text); got != tc.expected {
			t.Errorf("WordCount(%q) = %d, expected %d", tc.text, got, tc.expected)
		}
	}
}
