package registry

import (
	"os"
	"testing"

	"github.com/stencilhq/stencil/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "stencil-registry-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreate(t *testing.T, db *DB, project, number string) *models.Version {
	t.Helper()
	v, err := db.CreateVersion(models.Version{
		ProjectID:     project,
		VersionNumber: number,
		SnapshotPath:  "/data/" + project + "/versions/v" + number,
		ChangeClass:   models.ChangeEdit,
	})
	if err != nil {
		t.Fatalf("CreateVersion %s: %v", number, err)
	}
	return v
}

func TestCreateAndGetByID(t *testing.T) {
	db := testDB(t)
	v := mustCreate(t, db, "proj", "1.0")
	if v.ID == "" {
		t.Fatal("id not generated")
	}
	got, err := db.GetVersionByID(v.ID)
	if err != nil {
		t.Fatalf("GetVersionByID: %v", err)
	}
	if got == nil || got.VersionNumber != "1.0" || got.ProjectID != "proj" {
		t.Errorf("got %+v", got)
	}
	if got.ParentVersionID != "" {
		t.Errorf("parent = %q, want empty", got.ParentVersionID)
	}
}

func TestGetVersionByIDMissing(t *testing.T) {
	db := testDB(t)
	got, err := db.GetVersionByID("nope")
	if err != nil {
		t.Fatalf("GetVersionByID: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestGetVersionsNewestFirst(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "proj", "1.0")
	mustCreate(t, db, "proj", "1.1")
	mustCreate(t, db, "proj", "2.0")
	mustCreate(t, db, "other", "1.0")

	versions, err := db.GetVersions("proj")
	if err != nil {
		t.Fatalf("GetVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("len = %d, want 3", len(versions))
	}
	if versions[0].VersionNumber != "2.0" || versions[2].VersionNumber != "1.0" {
		t.Errorf("order = %s, %s, %s", versions[0].VersionNumber, versions[1].VersionNumber, versions[2].VersionNumber)
	}
}

func TestVersionNumberIsWriteOncePerProject(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "proj", "1.0")
	_, err := db.CreateVersion(models.Version{
		ProjectID:     "proj",
		VersionNumber: "1.0",
		SnapshotPath:  "/x",
		ChangeClass:   models.ChangeEdit,
	})
	if err == nil {
		t.Error("duplicate version number should fail")
	}
}

func TestSetActiveVersionDeactivatesSiblings(t *testing.T) {
	db := testDB(t)
	a := mustCreate(t, db, "proj", "1.0")
	b := mustCreate(t, db, "proj", "1.1")

	if _, err := db.SetActiveVersion(a.ID); err != nil {
		t.Fatalf("SetActiveVersion a: %v", err)
	}
	got, err := db.SetActiveVersion(b.ID)
	if err != nil {
		t.Fatalf("SetActiveVersion b: %v", err)
	}
	if got == nil || !got.IsActive {
		t.Fatalf("b not active: %+v", got)
	}

	active, err := db.GetActiveVersion("proj")
	if err != nil {
		t.Fatalf("GetActiveVersion: %v", err)
	}
	if active == nil || active.ID != b.ID {
		t.Errorf("active = %+v, want %s", active, b.ID)
	}

	// Exactly one active row.
	count := 0
	versions, _ := db.GetVersions("proj")
	for _, v := range versions {
		if v.IsActive {
			count++
		}
	}
	if count != 1 {
		t.Errorf("active count = %d, want 1", count)
	}
}

func TestSetActiveVersionMissing(t *testing.T) {
	db := testDB(t)
	got, err := db.SetActiveVersion("nope")
	if err != nil {
		t.Fatalf("SetActiveVersion: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestVersionFilesRoundTrip(t *testing.T) {
	db := testDB(t)
	v := mustCreate(t, db, "proj", "1.0")
	entries := []models.VersionedFile{
		{VersionID: v.ID, Path: "index.html", Checksum: "aaa"},
		{VersionID: v.ID, Path: "css/styles.css", Checksum: "bbb"},
	}
	if err := db.CreateVersionFiles(entries); err != nil {
		t.Fatalf("CreateVersionFiles: %v", err)
	}
	got, err := db.GetVersionFiles(v.ID)
	if err != nil {
		t.Fatalf("GetVersionFiles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Ordered by path.
	if got[0].Path != "css/styles.css" || got[1].Path != "index.html" {
		t.Errorf("order = %s, %s", got[0].Path, got[1].Path)
	}
}

func TestCreateVersionWithFiles(t *testing.T) {
	db := testDB(t)
	v, err := db.CreateVersionWithFiles(models.Version{
		ProjectID:     "proj",
		VersionNumber: "1.0",
		SnapshotPath:  "/x",
		ChangeClass:   models.ChangeInitial,
	}, []models.VersionedFile{
		{Path: "index.html", Checksum: "aaa"},
		{Path: "css/styles.css", Checksum: "bbb"},
	})
	if err != nil {
		t.Fatalf("CreateVersionWithFiles: %v", err)
	}
	got, err := db.GetVersionFiles(v.ID)
	if err != nil {
		t.Fatalf("GetVersionFiles: %v", err)
	}
	if len(got) != 2 || got[0].VersionID != v.ID {
		t.Errorf("files = %+v", got)
	}
}

func TestCreateVersionWithFilesIsAtomic(t *testing.T) {
	db := testDB(t)
	// The duplicate path violates UNIQUE(version_id, path); the version row
	// must roll back with it.
	_, err := db.CreateVersionWithFiles(models.Version{
		ProjectID:     "proj",
		VersionNumber: "1.0",
		SnapshotPath:  "/x",
		ChangeClass:   models.ChangeInitial,
	}, []models.VersionedFile{
		{Path: "index.html", Checksum: "aaa"},
		{Path: "index.html", Checksum: "bbb"},
	})
	if err == nil {
		t.Fatal("duplicate path should fail")
	}
	versions, err := db.GetVersions("proj")
	if err != nil {
		t.Fatalf("GetVersions: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("version row survived failed file insert: %+v", versions)
	}
}

func TestParentLineage(t *testing.T) {
	db := testDB(t)
	root := mustCreate(t, db, "proj", "1.0")
	child, err := db.CreateVersion(models.Version{
		ProjectID:       "proj",
		VersionNumber:   "1.1",
		SnapshotPath:    "/x",
		ParentVersionID: root.ID,
		ChangeClass:     models.ChangeRollback,
	})
	if err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	got, err := db.GetVersionByID(child.ID)
	if err != nil {
		t.Fatalf("GetVersionByID: %v", err)
	}
	if got.ParentVersionID != root.ID {
		t.Errorf("parent = %q, want %q", got.ParentVersionID, root.ID)
	}
}

func TestProjectIDs(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "beta", "1.0")
	mustCreate(t, db, "alpha", "1.0")
	mustCreate(t, db, "alpha", "1.1")

	ids, err := db.ProjectIDs()
	if err != nil {
		t.Fatalf("ProjectIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Errorf("ids = %v", ids)
	}
}
