// Package testutil provides shared test helpers for setting up project
// roots and registries.
package testutil

import (
	"os"
	"testing"

	"github.com/stencilhq/stencil/internal/pointer"
	"github.com/stencilhq/stencil/internal/registry"
	"github.com/stencilhq/stencil/internal/snapshot"
	"github.com/stencilhq/stencil/internal/versionsvc"
)

// TestRegistry creates a temporary SQLite registry that is automatically
// cleaned up.
func TestRegistry(t *testing.T) *registry.DB {
	t.Helper()
	f, err := os.CreateTemp("", "stencil-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := registry.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestService wires a version service over a temp projects root and a temp
// registry, returning the root alongside.
func TestService(t *testing.T) (*versionsvc.Service, string, *registry.DB) {
	t.Helper()
	root := t.TempDir()
	snapshots, err := snapshot.NewStore(root)
	if err != nil {
		t.Fatal(err)
	}
	pointers, err := pointer.NewManager(root)
	if err != nil {
		t.Fatal(err)
	}
	db := TestRegistry(t)
	return versionsvc.NewService(snapshots, pointers, db), root, db
}
