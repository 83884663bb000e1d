package rpc

import "github.com/jcdickinson/phpdomain/internal/php"

// BuildRequest is the request body for POST /build.
type BuildRequest struct {
	// Force re-reads every document, ignoring the saved environment.
	Force bool `json:"force,omitempty"`
}

// BuildResult summarizes one build.
type BuildResult struct {
	Documents  int    `json:"documents"`
	Read       int    `json:"read"`
	Cached     int    `json:"cached"`
	Removed    int    `json:"removed"`
	Objects    int    `json:"objects"`
	Namespaces int    `json:"namespaces"`
	Refs       int    `json:"refs"`
	Unresolved int    `json:"unresolved"`
	Warnings   int64  `json:"warnings"`
	DurationMs int64  `json:"duration_ms"`
	OutDir     string `json:"out_dir"`
}

// ProgressLine is a single line of NDJSON streamed from the build endpoint.
type ProgressLine struct {
	Type    string       `json:"type"` // "progress", "result" or "error"
	Message string       `json:"message,omitempty"`
	Result  *BuildResult `json:"result,omitempty"`
}

// ResolveRequest is the request body for POST /resolve. Role "any" tries
// every role. Target accepts the role text syntax: "Title <target>", "~"
// and a leading ".".
type ResolveRequest struct {
	Role          string `json:"role"`
	Target        string `json:"target"`
	Namespace     string `json:"namespace,omitempty"`
	EnclosingType string `json:"enclosing_type,omitempty"`
}

// ResolveResponse is the response body for POST /resolve.
type ResolveResponse struct {
	Found    bool   `json:"found"`
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`
	DocName  string `json:"docname,omitempty"`
	Anchor   string `json:"anchor,omitempty"`
	URI      string `json:"uri,omitempty"`
	Title    string `json:"title,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ParseRequest is the request body for POST /parse.
type ParseRequest struct {
	Kind          string               `json:"kind"`
	Signature     string               `json:"signature"`
	Namespace     string               `json:"namespace,omitempty"`
	EnclosingType string               `json:"enclosing_type,omitempty"`
	InClassBody   bool                 `json:"in_class_body,omitempty"`
	Options       php.DirectiveOptions `json:"options"`
}

// ParseResponse is the response body for POST /parse. Code and Error are
// set when the signature was rejected.
type ParseResponse struct {
	Declaration *php.Declaration `json:"declaration,omitempty"`
	Nodes       []php.SigNode    `json:"nodes,omitempty"`
	Text        string           `json:"text,omitempty"`
	IndexText   string           `json:"index_text,omitempty"`
	TocName     string           `json:"toc_name,omitempty"`
	Code        string           `json:"code,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query string   `json:"query"`
	Kinds []string `json:"kinds,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

// SearchResponse is the response body for POST /search.
type SearchResponse struct {
	Results []ObjectResult `json:"results"`
}

type ObjectResult struct {
	URI       string  `json:"uri"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	DocName   string  `json:"docname"`
	Anchor    string  `json:"anchor"`
	Signature string  `json:"signature,omitempty"`
	IndexText string  `json:"index_text,omitempty"`
	Line      int     `json:"line,omitempty"`
	Score     float32 `json:"score,omitempty"`
}

// ObjectsRequest is the request body for POST /objects. Empty filters match
// everything.
type ObjectsRequest struct {
	Kinds    []string `json:"kinds,omitempty"`
	DocNames []string `json:"docnames,omitempty"`
}

// ObjectsResponse is the response body for POST /objects.
type ObjectsResponse struct {
	Objects []ObjectResult `json:"objects"`
}

// ObjectRequest is the request body for POST /object.
type ObjectRequest struct {
	Name string `json:"name"`
}

// ObjectResponse is the response body for POST /object.
type ObjectResponse struct {
	Object     *ObjectResult `json:"object,omitempty"`
	References []RefLocation `json:"references,omitempty"`
}

type RefLocation struct {
	DocName string `json:"docname"`
	Line    int    `json:"line"`
	Role    string `json:"role"`
	Target  string `json:"target"`
}

// NamespacesResponse is the response body for GET /namespaces.
type NamespacesResponse struct {
	Index php.NamespaceIndex `json:"index"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Root       string `json:"root"`
	Built      bool   `json:"built"`
	LastBuild  string `json:"last_build,omitempty"`
	Documents  int    `json:"documents"`
	Objects    int    `json:"objects"`
	Namespaces int    `json:"namespaces"`
	Unresolved int    `json:"unresolved"`
	Watching   bool   `json:"watching"`
}

// ClearCacheResponse is the response body for POST /clear-cache.
type ClearCacheResponse struct {
	Removed int `json:"removed"`
}
