package candidates

import (
	"sort"
	"unicode"
)

// Score estimates how likely a password is to be a real, human-chosen
// credential. Length contributes up to 0.4, each character class present
// (upper, lower, digit, symbol) adds 0.15. Range 0 to 1.
func Score(password string) float64 {
	score := float64(len(password)) / 12
	if score > 1 {
		score = 1
	}
	score *= 0.4

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	for _, present := range []bool{upper, lower, digit, symbol} {
		if present {
			score += 0.15
		}
	}
	return score
}

// Rank sorts passwords by descending score. Equal scores keep their
// original order so ranking never scrambles a curated list.
func Rank(passwords []string) []string {
	ranked := make([]string, len(passwords))
	copy(ranked, passwords)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Score(ranked[i]) > Score(ranked[j])
	})
	return ranked
}
