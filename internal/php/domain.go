package php

import (
	"io"
	"log/slog"
)

// Options are the build-wide settings that affect naming and display.
type Options struct {
	// AddModuleNames shows the namespace (or full owner path) in front of
	// declared names.
	AddModuleNames bool `json:"add_module_names"`
	// AddFunctionParentheses appends "()" to callables in index and TOC text.
	AddFunctionParentheses bool `json:"add_function_parentheses"`
	// TocShowParents is one of "domain", "hide" or "all".
	TocShowParents string `json:"toc_object_entries_show_parents"`
	// ModIndexCommonPrefix lists namespace prefixes ignored when sorting the
	// namespace index.
	ModIndexCommonPrefix []string `json:"modindex_common_prefix,omitempty"`
	// Nitpicky reports unresolved references as warnings instead of info.
	Nitpicky bool `json:"nitpicky"`
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		AddModuleNames:         true,
		AddFunctionParentheses: true,
		TocShowParents:         "domain",
	}
}

// DirectiveOptions are the per-declaration options written on a directive.
type DirectiveOptions struct {
	// Namespace overrides the ambient namespace for this declaration only.
	Namespace       string `json:"namespace,omitempty"`
	NoIndex         bool   `json:"noindex,omitempty"`
	NoIndexEntry    bool   `json:"noindexentry,omitempty"`
	NoContentsEntry bool   `json:"nocontentsentry,omitempty"`
}

// Domain parses signatures and resolves references against Tables. It holds
// no mutable state and is safe for concurrent use.
type Domain struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Domain. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Domain {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Domain{opts: opts, logger: logger}
}

// Options returns the settings the domain was created with.
func (dom *Domain) Options() Options {
	return dom.opts
}

// WithLogger returns a copy of the domain that logs to logger.
func (dom *Domain) WithLogger(logger *slog.Logger) *Domain {
	return &Domain{opts: dom.opts, logger: logger}
}
