package backend

import (
	"path/filepath"
	"testing"

	"github.com/codahale/gubbins/assert"
)

func TestLevelStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := OpenLevelStore(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	if _, ok, err := store.GetItem("missing"); err != nil || ok {
		t.Fatalf("GetItem(missing) = %v, %v; want absent without error", ok, err)
	}

	if err := store.SetItem("k", "v1"); err != nil {
		t.Fatal(err)
	}

	v, ok, err := store.GetItem("k")
	if err != nil {
		t.Fatal(err)
	}

	if !ok {
		t.Fatal("stored item not found")
	}

	assert.Equal(t, "value", "v1", v)

	// Overwrite.
	if err := store.SetItem("k", "v2"); err != nil {
		t.Fatal(err)
	}

	v, _, err = store.GetItem("k")
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "overwritten value", "v2", v)
}

func TestLevelStorePersists(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "store")

	store, err := OpenLevelStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.SetItem("k", "v"); err != nil {
		t.Fatal(err)
	}

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenLevelStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()

	v, ok, err := reopened.GetItem("k")
	if err != nil {
		t.Fatal(err)
	}

	if !ok {
		t.Fatal("item lost across reopen")
	}

	assert.Equal(t, "value", "v", v)
}
