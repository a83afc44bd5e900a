package postgres

import (
	"sort"
	"testing"
)

func TestULIDGeneratorMonotonic(t *testing.T) {
	gen := NewULIDGenerator()

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = gen.Generate()
	}

	if !sort.StringsAreSorted(ids) {
		t.Fatal("expected generated IDs to be lexicographically increasing")
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		if len(id) != 26 {
			t.Fatalf("expected 26-char ULID, got %q", id)
		}
		seen[id] = struct{}{}
	}
}
