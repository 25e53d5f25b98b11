// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the almanac actions for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/almanac/internal/service"
)

const contractURI = "almanac://vault-layout"

// Server wraps the MCP server with the almanac tools.
type Server struct {
	mcp *server.MCPServer
	svc *service.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *service.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Almanac",
		service.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_period",
		mcp.WithDescription("Resolve a periodic note file name (2024.md, 2024-Q1.md, 2024-03.md, 2024-W10.md, 2024-03-15.md) "+
			"to its period kind, inclusive date range and the existing notes of the next finer granularity."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Periodic note file name")),
	), s.resolvePeriod)

	s.mcp.AddTool(mcp.NewTool("create_periodic_note",
		mcp.WithDescription("Create the daily, weekly, monthly, quarterly or yearly note covering a date. "+
			"Fails if the note already exists."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("daily, weekly, monthly, quarterly or yearly")),
		mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD (empty for today)")),
	), s.createPeriodic)

	s.mcp.AddTool(mcp.NewTool("period_tasks",
		mcp.WithDescription("List the checkbox tasks of every daily note inside a period."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Periodic note file name naming the period")),
	), s.periodTasks)

	s.mcp.AddTool(mcp.NewTool("period_links",
		mcp.WithDescription("List the [[links]] found under a header in every daily note inside a period."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Periodic note file name naming the period")),
		mcp.WithString("header", mcp.Required(), mcp.Description("Markdown header including the hashes, e.g. ## Projects")),
	), s.periodLinks)

	s.mcp.AddTool(mcp.NewTool("period_backlinks",
		mcp.WithDescription("Find all notes that link to a periodic note."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Periodic note file name")),
	), s.periodBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_para",
		mcp.WithDescription("List the items of a PARA category."),
		mcp.WithString("category", mcp.Required(), mcp.Description("projects, areas, resources or archives")),
	), s.listPara)

	s.mcp.AddTool(mcp.NewTool("create_para",
		mcp.WithDescription("Create a PARA item: a folder holding an index note tagged with the category."),
		mcp.WithString("category", mcp.Required(), mcp.Description("projects, areas or resources")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name, used as folder and note name")),
		mcp.WithString("tag", mcp.Description("Tag override (defaults to the category tag)")),
	), s.createPara)

	s.mcp.AddTool(mcp.NewTool("archive_para",
		mcp.WithDescription("Move a project, area or resource into the archives."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Item folder or its index note")),
	), s.archivePara)

	s.mcp.AddTool(mcp.NewTool("sync_daily_records",
		mcp.WithDescription("Pull memos from the configured Memos server into the daily notes and return the pass report."),
		mcp.WithBoolean("force", mcp.Description("Ignore the last-sync checkpoint and fetch the full history")),
	), s.syncDailyRecords)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Return the daily-record sync state and the report of the last pass."),
	), s.syncStatus)

	s.mcp.AddTool(mcp.NewTool("get_vault_layout",
		mcp.WithDescription("Returns the vault layout contract: where periodic notes and PARA items live "+
			"and how synced memos appear in daily notes."),
	), s.getVaultLayout)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Vault Layout Contract",
			mcp.WithResourceDescription("Folder layout and note conventions of the vault."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readVaultLayoutResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) resolvePeriod(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.ResolvePeriod(name))
}

func (s *Server) createPeriodic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.CreatePeriodic(ctx, kind, req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.Path)), nil
}

func (s *Server) periodTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tasks, err := s.svc.Tasks(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("no tasks found"), nil
	}
	return jsonResult(tasks)
}

func (s *Server) periodLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	header, err := req.RequireString("header")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.svc.SectionLinks(ctx, name, header)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no links found"), nil
	}
	return mcp.NewToolResultText(strings.Join(links, "\n")), nil
}

func (s *Server) periodBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) listPara(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.svc.ListPARA(category)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var paths []string
	for _, it := range items {
		paths = append(paths, it.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) createPara(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.CreatePARA(category, name, req.GetString("tag", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", p)), nil
}

func (s *Server) archivePara(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dest, err := s.svc.ArchivePARA(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("archived: %s", dest)), nil
}

func (s *Server) syncDailyRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.SyncDailyRecords(ctx, req.GetBool("force", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (s *Server) syncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.SyncStatus()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) getVaultLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(VaultLayoutContract), nil
}

func (s *Server) readVaultLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     VaultLayoutContract,
		},
	}, nil
}
