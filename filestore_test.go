package fetchkit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
)

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClock()

	store, err := NewFileStoreWithFs(fs, "cache/app.json", clock)
	if err != nil {
		t.Fatalf("NewFileStoreWithFs failed: %v", err)
	}

	store.Set("preferences", &Entry{Data: json.RawMessage(`{"lang":"sw"}`)}, time.Hour)

	reopened, err := NewFileStoreWithFs(fs, "cache/app.json", clock)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	entry, found := reopened.Get("preferences")
	if !found {
		t.Fatal("Expected persisted entry after reopen")
	}
	if string(entry.Data) != `{"lang":"sw"}` {
		t.Errorf("Unexpected payload: %s", entry.Data)
	}
}

func TestFileStoreExpiryPrunesDisk(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClock()

	store, err := NewFileStoreWithFs(fs, "cache.json", clock)
	if err != nil {
		t.Fatalf("NewFileStoreWithFs failed: %v", err)
	}
	store.Set("session", &Entry{Data: json.RawMessage(`{}`)}, time.Minute)

	clock.Advance(2 * time.Minute)
	if _, found := store.Get("session"); found {
		t.Error("Expired entry should be a miss")
	}

	reopened, err := NewFileStoreWithFs(fs, "cache.json", clock)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if reopened.Len() != 0 {
		t.Errorf("Expired entry should be pruned from disk, %d remain", reopened.Len())
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store, err := NewFileStoreWithFs(afero.NewMemMapFs(), "nope.json", clockwork.NewFakeClock())
	if err != nil {
		t.Fatalf("Missing file should not be an error: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty store, got %d entries", store.Len())
	}
}

func TestFileStoreCorruptFileErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "bad.json", []byte("not json"), 0o644); err != nil {
		t.Fatalf("Writing fixture failed: %v", err)
	}

	if _, err := NewFileStoreWithFs(fs, "bad.json", clockwork.NewFakeClock()); err == nil {
		t.Error("Expected error opening corrupt store")
	}
}

func TestFileStoreDeleteAndClear(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClock()
	store, err := NewFileStoreWithFs(fs, "cache.json", clock)
	if err != nil {
		t.Fatalf("NewFileStoreWithFs failed: %v", err)
	}

	store.Set("a", &Entry{Data: json.RawMessage(`1`)}, time.Hour)
	store.Set("b", &Entry{Data: json.RawMessage(`2`)}, time.Hour)

	store.Delete("a")
	if _, found := store.Get("a"); found {
		t.Error("Deleted entry should be a miss")
	}

	store.Clear()
	reopened, err := NewFileStoreWithFs(fs, "cache.json", clock)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if reopened.Len() != 0 {
		t.Errorf("Clear should persist emptiness, %d remain", reopened.Len())
	}
}
