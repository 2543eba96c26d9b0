// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Stencil version management tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stencilhq/stencil/internal/models"
	"github.com/stencilhq/stencil/internal/versionsvc"
)

// Server wraps the MCP server with Stencil version tools.
type Server struct {
	mcp *server.MCPServer
	svc *versionsvc.Service
}

// New creates a new MCP server with all version tools registered.
func New(svc *versionsvc.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Stencil",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_versions",
		mcp.WithDescription("List a project's version history, newest first."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
	), s.listVersions)

	s.mcp.AddTool(mcp.NewTool("get_version",
		mcp.WithDescription("Get one version record by id."),
		mcp.WithString("version_id", mcp.Required(), mcp.Description("Version id")),
	), s.getVersion)

	s.mcp.AddTool(mcp.NewTool("cut_version",
		mcp.WithDescription("Cut a new version from a finished source tree and make it live. "+
			"The source tree must be complete and non-empty; read the "+
			"stencil://version-layout resource for the numbering rules."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		mcp.WithString("source_dir", mcp.Required(), mcp.Description("Absolute path to the finished output tree")),
		mcp.WithString("change_class", mcp.Required(), mcp.Description("One of: initial, edit, regeneration")),
		mcp.WithString("changelog", mcp.Description("Optional human-readable summary of the change")),
	), s.cutVersion)

	s.mcp.AddTool(mcp.NewTool("activate_version",
		mcp.WithDescription("Make an existing version the live one. Never creates or deletes data."),
		mcp.WithString("version_id", mcp.Required(), mcp.Description("Version id")),
	), s.activateVersion)

	s.mcp.AddTool(mcp.NewTool("rollback_version",
		mcp.WithDescription("Create and activate a new version duplicating this one's content. "+
			"History is extended, never truncated."),
		mcp.WithString("version_id", mcp.Required(), mcp.Description("Version id to roll back to")),
	), s.rollbackVersion)

	s.mcp.AddTool(mcp.NewTool("verify_version",
		mcp.WithDescription("Re-hash a version's snapshot files and compare against the digests recorded at cut time."),
		mcp.WithString("version_id", mcp.Required(), mcp.Description("Version id")),
	), s.verifyVersion)

	// Resource: version layout contract.
	s.mcp.AddResource(
		mcp.NewResource("stencil://version-layout", "Version Layout Contract",
			mcp.WithResourceDescription("On-disk snapshot layout and version lifecycle rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	versions, err := s.svc.ListVersions(ctx, projectID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(versions) == 0 {
		return mcp.NewToolResultText("no versions found"), nil
	}
	return jsonResult(versions), nil
}

func (s *Server) getVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("version_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.GetVersion(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v), nil
}

func (s *Server) cutVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sourceDir, err := req.RequireString("source_dir")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	classArg, err := req.RequireString("change_class")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Rollback-class versions are minted via the rollback_version tool only.
	class := models.ChangeClass(classArg)
	if !class.Valid() || class == models.ChangeRollback {
		return mcp.NewToolResultError(fmt.Sprintf("invalid change class: %s", classArg)), nil
	}
	changelog := ""
	if c, err := req.RequireString("changelog"); err == nil {
		changelog = c
	}
	v, err := s.svc.Cut(ctx, projectID, sourceDir, class, versionsvc.CutOptions{Changelog: changelog})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v), nil
}

func (s *Server) activateVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("version_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.Activate(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("activated: v%s of project %s", v.VersionNumber, v.ProjectID)), nil
}

func (s *Server) rollbackVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("version_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.Rollback(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v), nil
}

func (s *Server) verifyVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("version_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.svc.Verify(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if report.Clean() {
		return mcp.NewToolResultText(fmt.Sprintf("clean: %d files verified", report.Checked)), nil
	}
	return jsonResult(report), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "stencil://version-layout",
			MIMEType: "text/markdown",
			Text:     VersionLayoutContract,
		},
	}, nil
}
