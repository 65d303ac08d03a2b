// Package mcp exposes the offline parts of archbot as MCP tools: patch
// parsing, record identification, the status transition check and the label
// catalog. None of the tools talk to the forge.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bf2/archbot/internal/labels"
	"github.com/bf2/archbot/internal/patch"
	"github.com/bf2/archbot/internal/record"
	"github.com/bf2/archbot/internal/transition"
)

// Server holds the settings the tools need.
type Server struct {
	publishedURL string
	version      string
}

// NewServer creates the MCP server wrapper. publishedURL is the default site
// root used to build record links and may be empty.
func NewServer(publishedURL, version string) *Server {
	return &Server{publishedURL: publishedURL, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("archbot", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.parsePatchTool())
	srv.AddTool(s.identifyRecordTool())
	srv.AddTool(s.checkTransitionTool())
	srv.AddTool(s.labelCatalogTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// archbot_parse_patch
func (s *Server) parsePatchTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("archbot_parse_patch",
		mcp.WithDescription("Parse the unified diff hunks of a single pull request file. Returns every hunk with its lines and their review-comment positions."),
		mcp.WithString("patch", mcp.Required(), mcp.Description("Hunk text starting at the first @@ header, without file headers")),
	)
	return tool, s.handleParsePatch
}

type lineOut struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Position  int    `json:"position"`
	NoNewline bool   `json:"no_newline,omitempty"`
}

type hunkOut struct {
	Header string    `json:"header"`
	Lines  []lineOut `json:"lines"`
}

func (s *Server) handleParsePatch(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("patch")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: patch"), nil
	}

	fp, err := patch.Parse(text)
	if err != nil {
		var pe *patch.ParseError
		if errors.As(err, &pe) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid patch at line %d: %s", pe.Line, pe.Reason)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := make([]hunkOut, len(fp.Hunks))
	for i, h := range fp.Hunks {
		out[i] = hunkOut{Header: h.Header(), Lines: make([]lineOut, len(h.Lines))}
		for j, l := range h.Lines {
			out[i].Lines[j] = lineOut{
				Type:      l.Type.String(),
				Text:      l.Text,
				Position:  l.Position,
				NoNewline: l.NoNewline,
			}
		}
	}
	return jsonResult(out)
}

// archbot_identify_record
func (s *Server) identifyRecordTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("archbot_identify_record",
		mcp.WithDescription("Identify the decision record a repository path belongs to. Returns its id, type, number, canonical path and published URL."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Repository path, e.g. _adr/12/index.adoc")),
		mcp.WithString("published_url", mcp.Description("Site root for the published URL (defaults to the configured one)")),
	)
	return tool, s.handleIdentifyRecord
}

func (s *Server) handleIdentifyRecord(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	id, ok := record.Identify(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not a record path: %s", path)), nil
	}

	type recordOut struct {
		ID           string `json:"id"`
		Type         string `json:"type"`
		Num          int    `json:"num"`
		RepoPath     string `json:"repo_path"`
		PublishedURL string `json:"published_url,omitempty"`
		Label        string `json:"label"`
	}
	out := recordOut{
		ID:       id.String(),
		Type:     id.Type.String(),
		Num:      id.Num,
		RepoPath: id.RepoPath(),
		Label:    labels.ForType(id.Type),
	}
	if base := request.GetString("published_url", s.publishedURL); base != "" {
		out.PublishedURL = id.PublishedURL(base)
	}
	return jsonResult(out)
}

// archbot_check_transition
func (s *Server) checkTransitionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("archbot_check_transition",
		mcp.WithDescription("Check a record status change. Give the record document before and after the change and optionally the file's patch. Returns the annotations the bot would post."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Repository path of the record")),
		mcp.WithString("base", mcp.Description("Document before the change; omit for a new record")),
		mcp.WithString("head", mcp.Description("Document after the change; omit for a deleted record")),
		mcp.WithString("patch", mcp.Description("Hunk text of the change, used to place annotations")),
	)
	return tool, s.handleCheckTransition
}

func (s *Server) handleCheckTransition(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}

	base, err := frontMatter(request.GetString("base", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("base: %v", err)), nil
	}
	head, err := frontMatter(request.GetString("head", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("head: %v", err)), nil
	}

	var fp *patch.FilePatch
	if text := request.GetString("patch", ""); text != "" {
		if fp, err = patch.Parse(text); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("patch: %v", err)), nil
		}
	}

	anns := transition.Check(path, base, head, fp)
	if anns == nil {
		anns = []transition.Annotation{}
	}
	return jsonResult(anns)
}

func frontMatter(doc string) (*record.FrontMatter, error) {
	if doc == "" {
		return nil, nil
	}
	d, err := record.Parse(doc)
	if err != nil {
		return nil, err
	}
	return &d.FrontMatter, nil
}

// archbot_label_catalog
func (s *Server) labelCatalogTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("archbot_label_catalog",
		mcp.WithDescription("List every label the bot manages with its family, color and description."),
	)
	return tool, s.handleLabelCatalog
}

func (s *Server) handleLabelCatalog(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type labelOut struct {
		Name        string `json:"name"`
		Family      string `json:"family"`
		Color       string `json:"color"`
		Description string `json:"description"`
	}
	catalog := labels.Catalog()
	out := make([]labelOut, len(catalog))
	for i, l := range catalog {
		out[i] = labelOut{Name: l.Name, Family: string(l.Family), Color: l.Color, Description: l.Description}
	}
	return jsonResult(out)
}
