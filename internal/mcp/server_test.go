package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/phpdomain/internal/php"
	"github.com/jcdickinson/phpdomain/internal/rpc"
	"github.com/jcdickinson/phpdomain/internal/search"
)

type fakeBackend struct {
	buildReq   rpc.BuildRequest
	resolveReq rpc.ResolveRequest
	parseReq   rpc.ParseRequest
	searchReq  rpc.SearchRequest
	objectName string
	parseResp  *rpc.ParseResponse
	err        error
}

func (f *fakeBackend) Build(_ context.Context, req rpc.BuildRequest, _ func(string)) (*rpc.BuildResult, error) {
	f.buildReq = req
	return &rpc.BuildResult{Documents: 2, Objects: 5}, f.err
}

func (f *fakeBackend) Resolve(_ context.Context, req rpc.ResolveRequest) (*rpc.ResolveResponse, error) {
	f.resolveReq = req
	return &rpc.ResolveResponse{Found: true, Name: `App\Widget`, URI: search.URI(`App\Widget`)}, f.err
}

func (f *fakeBackend) Parse(_ context.Context, req rpc.ParseRequest) (*rpc.ParseResponse, error) {
	f.parseReq = req
	return f.parseResp, f.err
}

func (f *fakeBackend) Search(_ context.Context, req rpc.SearchRequest) (*rpc.SearchResponse, error) {
	f.searchReq = req
	return &rpc.SearchResponse{Results: []rpc.ObjectResult{{Name: `App\Widget::render`, Kind: "method"}}}, f.err
}

func (f *fakeBackend) Object(_ context.Context, name string) (*rpc.ObjectResponse, error) {
	f.objectName = name
	if name != `App\Widget::render` {
		return &rpc.ObjectResponse{}, f.err
	}
	return &rpc.ObjectResponse{
		Object:     &rpc.ObjectResult{Name: name, Kind: "method"},
		References: []rpc.RefLocation{{DocName: "guide", Line: 3, Role: "meth", Target: "render"}},
	}, f.err
}

func (f *fakeBackend) Namespaces(_ context.Context) (*rpc.NamespacesResponse, error) {
	return &rpc.NamespacesResponse{Index: php.NamespaceIndex{
		Groups: []php.IndexGroup{{Letter: "A", Entries: []php.IndexEntry{{Name: "App"}}}},
	}}, f.err
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleBuild(t *testing.T) {
	backend := &fakeBackend{}
	s := NewServer(backend)

	res, err := s.handleBuild(context.Background(), call(map[string]any{"force": true}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.True(t, backend.buildReq.Force)

	var got rpc.BuildResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, 5, got.Objects)

	backend.err = errors.New("disk full")
	res, err = s.handleBuild(context.Background(), call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "disk full")
}

func TestHandleResolve(t *testing.T) {
	backend := &fakeBackend{}
	s := NewServer(backend)

	res, err := s.handleResolve(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleResolve(context.Background(), call(map[string]any{
		"target":         "Widget",
		"role":           "class",
		"namespace":      "App",
		"enclosing_type": `App\Other`,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, rpc.ResolveRequest{Role: "class", Target: "Widget", Namespace: "App", EnclosingType: `App\Other`}, backend.resolveReq)
	assert.Contains(t, text(t, res), `phpdoc://App%5CWidget`)
}

func TestHandleParse(t *testing.T) {
	backend := &fakeBackend{parseResp: &rpc.ParseResponse{Text: "render()"}}
	s := NewServer(backend)

	res, err := s.handleParse(context.Background(), call(map[string]any{
		"kind":           "method",
		"signature":      "render()",
		"enclosing_type": `App\Widget`,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.True(t, backend.parseReq.InClassBody)

	backend.parseResp = &rpc.ParseResponse{Code: "INVALID_SIGNATURE", Error: "invalid signature"}
	res, err = s.handleParse(context.Background(), call(map[string]any{"kind": "function", "signature": "x y"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid signature", text(t, res))

	res, err = s.handleParse(context.Background(), call(map[string]any{"kind": "function"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleSearch(t *testing.T) {
	backend := &fakeBackend{}
	s := NewServer(backend)

	res, err := s.handleSearch(context.Background(), call(map[string]any{
		"query": "render",
		"kinds": []any{"method", "function"},
		"limit": float64(5),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, rpc.SearchRequest{Query: "render", Kinds: []string{"method", "function"}, Limit: 5}, backend.searchReq)

	var got []rpc.ObjectResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, `App\Widget::render`, got[0].Name)
}

func TestHandleNamespaces(t *testing.T) {
	s := NewServer(&fakeBackend{})

	res, err := s.handleNamespaces(context.Background(), call(nil))
	require.NoError(t, err)

	var got php.NamespaceIndex
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got.Groups, 1)
	assert.Equal(t, "App", got.Groups[0].Entries[0].Name)
}

func TestHandleReadResource(t *testing.T) {
	backend := &fakeBackend{}
	s := NewServer(backend)

	var req mcp.ReadResourceRequest
	req.Params.URI = search.URI(`App\Widget::render`)
	contents, err := s.handleReadResource(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, `App\Widget::render`, backend.objectName)
	require.Len(t, contents, 1)

	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, req.Params.URI, tc.URI)

	var got rpc.ObjectResponse
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &got))
	require.Len(t, got.References, 1)
	assert.Equal(t, "guide", got.References[0].DocName)

	req.Params.URI = search.URI(`App\Missing`)
	_, err = s.handleReadResource(context.Background(), req)
	assert.Error(t, err)

	req.Params.URI = "file:///etc/passwd"
	_, err = s.handleReadResource(context.Background(), req)
	assert.Error(t, err)
}
