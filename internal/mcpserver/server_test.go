package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stencilhq/stencil/internal/models"
	"github.com/stencilhq/stencil/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	svc, _, _ := testutil.TestService(t)
	return New(svc)
}

func sourceTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_versions":
		result, err = srv.listVersions(ctx, req)
	case "get_version":
		result, err = srv.getVersion(ctx, req)
	case "cut_version":
		result, err = srv.cutVersion(ctx, req)
	case "activate_version":
		result, err = srv.activateVersion(ctx, req)
	case "rollback_version":
		result, err = srv.rollbackVersion(ctx, req)
	case "verify_version":
		result, err = srv.verifyVersion(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func cutVersion(t *testing.T, srv *Server, projectID, class string, files map[string]string) models.Version {
	t.Helper()
	r := callTool(t, srv, "cut_version", map[string]interface{}{
		"project_id":   projectID,
		"source_dir":   sourceTree(t, files),
		"change_class": class,
	})
	if r.IsError {
		t.Fatalf("cut_version: %s", resultText(r))
	}
	var v models.Version
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode cut result: %v", err)
	}
	return v
}

func TestCutAndListVersions(t *testing.T) {
	srv := testServer(t)

	v := cutVersion(t, srv, "proj", "initial", map[string]string{"index.html": "<html/>"})
	if v.VersionNumber != "1.0" || !v.IsActive {
		t.Errorf("cut = %+v", v)
	}

	r := callTool(t, srv, "list_versions", map[string]interface{}{"project_id": "proj"})
	if !strings.Contains(resultText(r), `"version_number": "1.0"`) {
		t.Errorf("list result = %q", resultText(r))
	}
}

func TestListVersionsEmpty(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_versions", map[string]interface{}{"project_id": "proj"})
	if resultText(r) != "no versions found" {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestCutUnknownChangeClass(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "cut_version", map[string]interface{}{
		"project_id":   "proj",
		"source_dir":   sourceTree(t, map[string]string{"a": "1"}),
		"change_class": "bogus",
	})
	if !r.IsError {
		t.Error("expected error result")
	}
}

func TestCutRollbackClassRejected(t *testing.T) {
	srv := testServer(t)
	cutVersion(t, srv, "proj", "initial", map[string]string{"a": "1"})

	// Only the rollback_version tool mints rollback-class versions.
	r := callTool(t, srv, "cut_version", map[string]interface{}{
		"project_id":   "proj",
		"source_dir":   sourceTree(t, map[string]string{"a": "2"}),
		"change_class": "rollback",
	})
	if !r.IsError {
		t.Error("expected error result")
	}
}

func TestActivateAndRollback(t *testing.T) {
	srv := testServer(t)
	v1 := cutVersion(t, srv, "proj", "initial", map[string]string{"a.txt": "one"})
	cutVersion(t, srv, "proj", "edit", map[string]string{"a.txt": "two"})

	r := callTool(t, srv, "activate_version", map[string]interface{}{"version_id": v1.ID})
	if !strings.Contains(resultText(r), "activated: v1.0") {
		t.Errorf("activate result = %q", resultText(r))
	}

	r = callTool(t, srv, "rollback_version", map[string]interface{}{"version_id": v1.ID})
	var rb models.Version
	if err := json.Unmarshal([]byte(resultText(r)), &rb); err != nil {
		t.Fatalf("decode rollback result: %v", err)
	}
	if rb.VersionNumber != "1.2" || rb.ParentVersionID != v1.ID {
		t.Errorf("rollback = %+v", rb)
	}
}

func TestVerifyCleanVersion(t *testing.T) {
	srv := testServer(t)
	v := cutVersion(t, srv, "proj", "initial", map[string]string{"a.txt": "one", "b.txt": "two"})

	r := callTool(t, srv, "verify_version", map[string]interface{}{"version_id": v.ID})
	if resultText(r) != "clean: 2 files verified" {
		t.Errorf("verify result = %q", resultText(r))
	}
}

func TestGetVersionMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_version", map[string]interface{}{"version_id": "nope"})
	if !r.IsError {
		t.Error("expected error result for missing version")
	}
}
