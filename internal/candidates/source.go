package candidates

import (
	"fmt"
	"strings"
	"sync"

	"github.com/vulnverified/pry/internal/engine"
)

// List is an ordered, concurrency-safe candidate source. Each candidate
// is handed out at most once across all callers.
type List struct {
	mu    sync.Mutex
	items []engine.Candidate
	next  int
}

// NewList builds a source over the given credentials, assigning each its
// position in the guessing order.
func NewList(items []engine.Candidate) *List {
	for i := range items {
		items[i].Index = i
	}
	return &List{items: items}
}

// Next returns the next untried candidate, or ok=false when the list is
// drained.
func (l *List) Next() (engine.Candidate, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.next >= len(l.items) {
		return engine.Candidate{}, false
	}
	c := l.items[l.next]
	l.next++
	return c, true
}

// Len returns the total number of candidates in the list.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Pairs crosses every username with every password, usernames outermost.
func Pairs(users, passwords []string) []engine.Candidate {
	items := make([]engine.Candidate, 0, len(users)*len(passwords))
	for _, u := range users {
		for _, p := range passwords {
			items = append(items, engine.Candidate{Username: u, Password: p})
		}
	}
	return items
}

// Combos parses "user:pass" lines into candidates. Passwords may contain
// colons; only the first one splits.
func Combos(lines []string) ([]engine.Candidate, error) {
	items := make([]engine.Candidate, 0, len(lines))
	for i, line := range lines {
		user, pass, ok := strings.Cut(line, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("combo line %d: want user:pass, got %q", i+1, line)
		}
		items = append(items, engine.Candidate{Username: user, Password: pass})
	}
	return items, nil
}
