package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jcdickinson/phpdomain/internal/rpc"
	"github.com/jcdickinson/phpdomain/internal/search"
)

//go:embed instructions.md
var instructions string

// Backend answers the tool calls. The daemon client is the usual one.
type Backend interface {
	Build(ctx context.Context, req rpc.BuildRequest, onProgress func(string)) (*rpc.BuildResult, error)
	Resolve(ctx context.Context, req rpc.ResolveRequest) (*rpc.ResolveResponse, error)
	Parse(ctx context.Context, req rpc.ParseRequest) (*rpc.ParseResponse, error)
	Search(ctx context.Context, req rpc.SearchRequest) (*rpc.SearchResponse, error)
	Object(ctx context.Context, name string) (*rpc.ObjectResponse, error)
	Namespaces(ctx context.Context) (*rpc.NamespacesResponse, error)
}

type Server struct {
	mcpServer *server.MCPServer
	backend   Backend
}

func NewServer(backend Backend) *Server {
	s := &Server{backend: backend}

	mcpServer := server.NewMCPServer(
		"phpdomain",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("build_docs",
			mcp.WithDescription("Build the project documentation. Incremental unless force is set. Returns counts of documents, objects, unresolved references and warnings."),
			mcp.WithBoolean("force",
				mcp.Description("Re-read every source instead of only changed ones"),
			),
		),
		s.handleBuild,
	)

	mcpServer.AddTool(
		mcp.NewTool("resolve_reference",
			mcp.WithDescription("Resolve a PHP cross-reference the way a role in the documentation would. Returns the canonical name, the document and anchor, and a phpdoc:// URI."),
			mcp.WithString("target",
				mcp.Description(`Reference text, e.g. "Widget::render", "\\App\\Widget" or "Title <App\\Widget>"`),
				mcp.Required(),
			),
			mcp.WithString("role",
				mcp.Description("Role: func, class, meth, attr, const, ns, ... (default: try every role)"),
			),
			mcp.WithString("namespace",
				mcp.Description("Namespace in effect at the point of reference"),
			),
			mcp.WithString("enclosing_type",
				mcp.Description("Canonical name of the enclosing class, interface, trait or enum"),
			),
		),
		s.handleResolve,
	)

	mcpServer.AddTool(
		mcp.NewTool("parse_signature",
			mcp.WithDescription("Parse a PHP declaration signature as a php directive would and return its canonical name and rendered form."),
			mcp.WithString("kind",
				mcp.Description("Object kind: function, class, interface, trait, enum, case, method, attr, const, global, namespace"),
				mcp.Required(),
			),
			mcp.WithString("signature",
				mcp.Description(`Signature text, e.g. "public static create(array $opts): self"`),
				mcp.Required(),
			),
			mcp.WithString("namespace",
				mcp.Description("Namespace in effect"),
			),
			mcp.WithString("enclosing_type",
				mcp.Description("Canonical name of the enclosing type, for members"),
			),
		),
		s.handleParse,
	)

	mcpServer.AddTool(
		mcp.NewTool("search_objects",
			mcp.WithDescription("Search documented PHP objects by name. Exact and short-name matches rank first. Returns URIs that can be read as resources."),
			mcp.WithString("query",
				mcp.Description("Name or name fragment"),
				mcp.Required(),
			),
			mcp.WithArray("kinds",
				mcp.Description("Optional list of object kinds to search within"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default 20)"),
			),
		),
		s.handleSearch,
	)

	mcpServer.AddTool(
		mcp.NewTool("namespace_index",
			mcp.WithDescription("List the documented namespaces grouped by initial letter, with synopses."),
		),
		s.handleNamespaces,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"phpdoc://{+name}",
			"PHP object",
			mcp.WithTemplateDescription("The record of a documented PHP object and the places that reference it. Search and resolve results return these URIs."),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleReadResource,
	)
}

func jsonResult(v any) *mcp.CallToolResult {
	resultJSON, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(resultJSON))
}

func (s *Server) handleBuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	force, _ := args["force"].(bool)

	res, err := s.backend.Build(ctx, rpc.BuildRequest{Force: force}, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build failed: %v", err)), nil
	}
	return jsonResult(res), nil
}

func (s *Server) handleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	target, _ := args["target"].(string)
	if target == "" {
		return mcp.NewToolResultError("missing required parameter: target"), nil
	}

	resolveReq := rpc.ResolveRequest{Target: target}
	resolveReq.Role, _ = args["role"].(string)
	resolveReq.Namespace, _ = args["namespace"].(string)
	resolveReq.EnclosingType, _ = args["enclosing_type"].(string)

	resp, err := s.backend.Resolve(ctx, resolveReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolve failed: %v", err)), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	kind, _ := args["kind"].(string)
	sig, _ := args["signature"].(string)
	if kind == "" || sig == "" {
		return mcp.NewToolResultError("missing required parameters: kind and signature"), nil
	}

	parseReq := rpc.ParseRequest{Kind: kind, Signature: sig}
	parseReq.Namespace, _ = args["namespace"].(string)
	parseReq.EnclosingType, _ = args["enclosing_type"].(string)
	parseReq.InClassBody = parseReq.EnclosingType != ""

	resp, err := s.backend.Parse(ctx, parseReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse failed: %v", err)), nil
	}
	if resp.Error != "" {
		return mcp.NewToolResultError(resp.Error), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	searchReq := rpc.SearchRequest{Query: query}
	if kindsRaw, ok := args["kinds"]; ok {
		kindsJSON, _ := json.Marshal(kindsRaw)
		json.Unmarshal(kindsJSON, &searchReq.Kinds)
	}
	if limit, ok := args["limit"].(float64); ok {
		searchReq.Limit = int(limit)
	}

	resp, err := s.backend.Search(ctx, searchReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(resp.Results), nil
}

func (s *Server) handleNamespaces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.backend.Namespaces(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("namespace index failed: %v", err)), nil
	}
	return jsonResult(resp.Index), nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	name, ok := search.NameFromURI(uri)
	if !ok {
		return nil, fmt.Errorf("invalid resource URI: %s", uri)
	}

	resp, err := s.backend.Object(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("getting object: %w", err)
	}
	if resp.Object == nil {
		return nil, fmt.Errorf("object %s not found", name)
	}

	data, _ := json.MarshalIndent(resp, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) Shutdown(_ context.Context) error {
	return nil
}
