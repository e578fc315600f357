// Package candidates builds and orders the credential guesses fed to the
// engine: wordlist loading, user/password pairing, mutation and ranking.
package candidates

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load reads a wordlist file into a string slice. Lines are trimmed,
// empty lines and comments are skipped, duplicates are dropped while
// keeping first-seen order.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close()

	var words []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read wordlist: %w", err)
	}
	return words, nil
}
