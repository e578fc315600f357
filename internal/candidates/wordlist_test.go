package candidates

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	content := "password\n\n# common defaults\nadmin\n  letmein  \npassword\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write wordlist: %v", err)
	}

	words, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"password", "admin", "letmein"}
	if len(words) != len(want) {
		t.Fatalf("got %d words %v, want %d", len(words), words, len(want))
	}
	for i, w := range want {
		if words[i] != w {
			t.Errorf("words[%d] = %q, want %q", i, words[i], w)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
