package candidates

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// mutationPatterns are the suffixes and prefixes bolted onto base words.
var mutationPatterns = []string{"123", "!", "1234"}

// leetSubs lists common character substitutions in a fixed order so the
// generated sequence is deterministic.
var leetSubs = []struct {
	from string
	to   []string
}{
	{"a", []string{"4", "@"}},
	{"e", []string{"3"}},
	{"i", []string{"1", "!"}},
	{"o", []string{"0"}},
	{"s", []string{"5", "$"}},
	{"t", []string{"7", "+"}},
}

// Expand grows a password list with mutations of each word: pattern
// suffixes and prefixes, capitalization, leetspeak substitution and
// recent-year appendage. Originals come first, duplicates are dropped.
func Expand(words []string) []string {
	out := make([]string, 0, len(words)*8)
	seen := make(map[string]bool, len(words)*8)
	add := func(w string) {
		if w == "" || seen[w] {
			return
		}
		seen[w] = true
		out = append(out, w)
	}

	for _, w := range words {
		add(w)
	}
	for _, w := range words {
		for _, m := range mutations(w) {
			add(m)
		}
	}
	return out
}

func mutations(base string) []string {
	var combos []string
	title := capitalize(base)
	for _, p := range mutationPatterns {
		combos = append(combos, base+p, title+p)
	}
	for _, p := range mutationPatterns {
		combos = append(combos, p+base, p+title)
	}

	// Leet variants of the pattern combos, one substituted character at
	// a time, every occurrence replaced.
	var leet []string
	for _, c := range combos {
		lower := strings.ToLower(c)
		for _, sub := range leetSubs {
			if !strings.Contains(lower, sub.from) {
				continue
			}
			for _, r := range sub.to {
				leet = append(leet, strings.ReplaceAll(lower, sub.from, r))
			}
		}
	}
	combos = append(combos, leet...)

	year := time.Now().Year()
	for y := year - 5; y <= year+1; y++ {
		ys := strconv.Itoa(y)
		combos = append(combos, base+ys, ys+base)
	}
	return combos
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
