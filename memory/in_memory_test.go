package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/mindbots/voicemesh/core"
)

var _ core.MemoryStore = (*InMemoryStore)(nil)

func TestInMemoryStore_PinnedFacts(t *testing.T) {
	store := NewInMemoryStore()

	facts, err := store.Get("room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("expected no facts for a fresh room, got %#v", facts)
	}

	if err := store.Put("room-1", map[string]any{"user_name": "MindExpander", "visits": 2}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	facts, _ = store.Get("room-1")
	if len(facts) != 2 || facts["user_name"] != "MindExpander" || facts["visits"].(int) != 2 {
		t.Fatalf("unexpected facts: %#v", facts)
	}

	// The returned map is a copy.
	facts["user_name"] = "changed"
	again, _ := store.Get("room-1")
	if again["user_name"] != "MindExpander" {
		t.Fatalf("expected copy isolation, got %#v", again["user_name"])
	}
}

func TestInMemoryStore_RecallOrderAndCase(t *testing.T) {
	store := NewInMemoryStore()

	utterances := []string{
		"the user likes synthwave",
		"the user's robot is named Prism",
		"the USER asked about the workshop",
	}
	for _, u := range utterances {
		if err := store.Store("room-2", u, nil); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	// Empty query recalls everything, most recent first.
	all, err := store.Search("room-2", "", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 results, got %d", len(all))
	}
	if all[0].Content != utterances[2] || all[2].Content != utterances[0] {
		t.Fatalf("expected newest first, got %#v", all)
	}

	// Matching ignores case.
	res, _ := store.Search("room-2", "USER", 10)
	if len(res) != 3 {
		t.Fatalf("expected case-insensitive matches, got %d", len(res))
	}
	res, _ = store.Search("room-2", "prism", 10)
	if len(res) != 1 || res[0].Content != utterances[1] {
		t.Fatalf("unexpected match: %#v", res)
	}

	// Limit applies after ordering.
	res, _ = store.Search("room-2", "", 2)
	if len(res) != 2 || res[0].Content != utterances[2] {
		t.Fatalf("unexpected limited results: %#v", res)
	}
}

func TestInMemoryStore_DeleteKeepsIDsUnique(t *testing.T) {
	store := NewInMemoryStore()

	for i := 0; i < 3; i++ {
		if err := store.Store("room-3", fmt.Sprintf("note %d", i), nil); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	all, _ := store.Search("room-3", "", 10)
	if err := store.Delete("room-3", all[len(all)-1].ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// A new record after a delete must not reuse a live ID.
	if err := store.Store("room-3", "note 3", nil); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	res, _ := store.Search("room-3", "", 10)
	if len(res) != 3 {
		t.Fatalf("expected 3 records after delete+store, got %d", len(res))
	}
	seen := map[string]bool{}
	for _, r := range res {
		if seen[r.ID] {
			t.Fatalf("duplicate memory id %q", r.ID)
		}
		seen[r.ID] = true
	}

	if err := store.Delete("room-3", "does_not_exist"); err == nil {
		t.Fatal("expected error deleting a nonexistent memory")
	}
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryStore()

	wg := sync.WaitGroup{}
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Put("room-4", map[string]any{fmt.Sprintf("k%d", i%5): i}); err != nil {
				t.Errorf("put error: %v", err)
			}
			if err := store.Store("room-4", fmt.Sprintf("utterance %d", i), nil); err != nil {
				t.Errorf("store error: %v", err)
			}
			if _, err := store.Search("room-4", "utterance", 5); err != nil {
				t.Errorf("search error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	facts, _ := store.Get("room-4")
	if len(facts) == 0 {
		t.Fatal("expected facts after concurrent writes")
	}
	all, _ := store.Search("room-4", "", 100)
	if len(all) != 25 {
		t.Fatalf("expected 25 remembered utterances, got %d", len(all))
	}
}
