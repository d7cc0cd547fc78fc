package game

import (
	"errors"
	"testing"
)

func TestRegistryRefcounting(t *testing.T) {
	reg := NewRegistry()
	repo := newFakeRepo(ModeSingle, 0)
	factory := func(sessionID string) (*Controller, error) {
		return NewController(repo, testProvider(t), sessionID)
	}

	first, err := reg.GetOrCreate(factory, "sess-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := reg.GetOrCreate(factory, "sess-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first != second {
		t.Fatal("two controllers for one session")
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}

	reg.Release("sess-1")
	if reg.Len() != 1 {
		t.Fatal("controller dropped while still referenced")
	}
	reg.Release("sess-1")
	if reg.Len() != 0 {
		t.Fatal("controller not dropped at zero refcount")
	}

	// A fresh reference builds a fresh controller.
	third, err := reg.GetOrCreate(factory, "sess-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if third == first {
		t.Fatal("released controller was reused")
	}
	reg.Release("sess-1")
}

func TestRegistryFactoryErrorLeavesNoEntry(t *testing.T) {
	reg := NewRegistry()
	factory := func(sessionID string) (*Controller, error) {
		return nil, ErrNotFound
	}
	if _, err := reg.GetOrCreate(factory, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("Len = %d, want 0", reg.Len())
	}
}

func TestRegistryReleaseUnknownSession(t *testing.T) {
	reg := NewRegistry()
	reg.Release("never-seen")
	if reg.Len() != 0 {
		t.Fatal("phantom entry appeared")
	}
}
