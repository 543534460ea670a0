package exemplar

import "testing"

func TestNewDefaultStoreHasFixedOrder(t *testing.T) {
	store := NewDefaultStore()
	if store.Len() != 5 {
		t.Fatalf("Len() = %d", store.Len())
	}
	if got := store.At(0); got != "SELECT COUNT(*) FROM products;" {
		t.Fatalf("At(0) = %q", got)
	}
}

func TestNewStoreRejectsEmptySet(t *testing.T) {
	if _, err := NewStore(nil); err == nil {
		t.Fatal("NewStore(nil) should fail")
	}
}

func TestNewStoreRejectsBlankExemplar(t *testing.T) {
	if _, err := NewStore([]string{"SELECT 1;", "   "}); err == nil {
		t.Fatal("NewStore() should reject blank exemplar")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	store := NewDefaultStore()
	all := store.All()
	all[0] = "mutated"
	if store.At(0) == "mutated" {
		t.Fatal("All() must not expose internal slice")
	}
}
