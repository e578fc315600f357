package candidates

import (
	"sync"
	"testing"
)

func TestList_OrderAndIndexes(t *testing.T) {
	list := NewList(Pairs([]string{"root", "admin"}, []string{"a", "b"}))
	if list.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", list.Len())
	}

	want := []struct{ user, pass string }{
		{"root", "a"}, {"root", "b"}, {"admin", "a"}, {"admin", "b"},
	}
	for i, w := range want {
		c, ok := list.Next()
		if !ok {
			t.Fatalf("Next() drained at %d", i)
		}
		if c.Username != w.user || c.Password != w.pass || c.Index != i {
			t.Errorf("candidate %d = %s/%s index %d, want %s/%s index %d",
				i, c.Username, c.Password, c.Index, w.user, w.pass, i)
		}
	}
	if _, ok := list.Next(); ok {
		t.Error("Next() returned a candidate past the end")
	}
}

func TestList_AtMostOnceUnderConcurrency(t *testing.T) {
	const n = 200
	passwords := make([]string, n)
	for i := range passwords {
		passwords[i] = "pw" + string(rune('a'+i%26)) + string(rune('0'+i%10))
	}
	list := NewList(Pairs([]string{"root"}, passwords))

	var mu sync.Mutex
	seen := make(map[int]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				c, ok := list.Next()
				if !ok {
					return
				}
				mu.Lock()
				seen[c.Index]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("drew %d distinct candidates, want %d", len(seen), n)
	}
	for idx, count := range seen {
		if count != 1 {
			t.Errorf("candidate %d handed out %d times", idx, count)
		}
	}
}

func TestCombos(t *testing.T) {
	items, err := Combos([]string{"root:toor", "svc:pa:ss"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d candidates, want 2", len(items))
	}
	if items[1].Username != "svc" || items[1].Password != "pa:ss" {
		t.Errorf("combo = %s/%s, want svc/pa:ss", items[1].Username, items[1].Password)
	}

	if _, err := Combos([]string{"no-separator"}); err == nil {
		t.Error("expected error for line without separator")
	}
	if _, err := Combos([]string{":emptyuser"}); err == nil {
		t.Error("expected error for empty username")
	}
}
