// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Sowilo tag tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sowilo/internal/noteservice"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/tagindex"
)

// Server wraps the MCP server with Sowilo tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	notes *noteservice.Service
	idx   *tagindex.Index
}

// New creates a new MCP server with all Sowilo tools registered.
func New(store storage.Provider, notes *noteservice.Service, idx *tagindex.Index) *Server {
	s := &Server{store: store, notes: notes, idx: idx}

	s.mcp = server.NewMCPServer(
		"Sowilo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_tags",
		mcp.WithDescription("Fuzzy-search the vault's tag vocabulary. Returns matching tags with usage counts and match scores."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Approximate tag query string")),
	), s.searchTags)

	s.mcp.AddTool(mcp.NewTool("get_all_tags",
		mcp.WithDescription("List every tag in the vault with its usage count."),
	), s.getAllTags)

	s.mcp.AddTool(mcp.NewTool("files_for_tag",
		mcp.WithDescription("List the notes and journal entries that carry a tag."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Exact tag name")),
	), s.filesForTag)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

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

func (s *Server) searchTags(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results := s.idx.Search(query)
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getAllTags(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.idx.AllTags(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) filesForTag(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	keys := s.idx.FilesFor(tag)
	if len(keys) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no files carry tag %q", tag)), nil
	}
	return mcp.NewToolResultText(strings.Join(keys, "\n")), nil
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	paths, err := s.notes.ListNotes(ctx, folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}
