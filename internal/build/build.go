// Package build runs a documentation build: sources are read in parallel
// into per-document doctrees, merged into the project tables one after
// another, and every reference is resolved once all declarations are known.
package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jcdickinson/phpdomain/internal/cas"
	"github.com/jcdickinson/phpdomain/internal/config"
	"github.com/jcdickinson/phpdomain/internal/db"
	"github.com/jcdickinson/phpdomain/internal/discover"
	"github.com/jcdickinson/phpdomain/internal/docs"
	"github.com/jcdickinson/phpdomain/internal/logging"
	"github.com/jcdickinson/phpdomain/internal/markdown"
	"github.com/jcdickinson/phpdomain/internal/php"
	"github.com/jcdickinson/phpdomain/internal/rpc"
)

// Options control a single build.
type Options struct {
	// Force re-reads every source even when the environment is current.
	Force bool
	// Progress receives human-readable status lines. Calls are serialized.
	Progress func(msg string)
}

// Result is the outcome of a build. Env holds the merged tables.
type Result struct {
	rpc.BuildResult
	Env *Environment
}

type Builder struct {
	cfg    *config.Config
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, logger: logger}
}

// source is one discovered file and, after the read phase, its doctree.
type source struct {
	entry discover.FileEntry
	hash  string
	key   string
	tree  *docs.Doctree
	// changed is set when the tree differs from the one in the environment.
	changed bool
	cached  bool
}

func (b *Builder) workers() int {
	if b.cfg.Build.Workers > 0 {
		return b.cfg.Build.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Domain returns a domain configured for the project.
func (b *Builder) Domain(logger *slog.Logger) *php.Domain {
	return php.New(b.cfg.DomainOptions(), logger)
}

// Build reads, merges, resolves and writes the project. Warnings logged
// during the build are counted in the result.
func (b *Builder) Build(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	var mu sync.Mutex
	progress := func(msg string) {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		opts.Progress(msg)
	}

	b.logger.Info("build started", "root", b.cfg.Root, "force", opts.Force)
	counter := logging.NewCounter(b.logger.Handler())
	log := slog.New(counter)
	dom := b.Domain(log)

	files, err := discover.Files(b.cfg.Root, b.cfg.SourceSuffix, b.cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("discovering sources: %w", err)
	}
	progress(fmt.Sprintf("Found %d sources", len(files)))

	force := opts.Force
	if _, err := os.Stat(b.cfg.DBPath()); err != nil {
		force = true
	}
	env := b.loadEnvironment(force)

	sources := make([]*source, len(files))
	for i, f := range files {
		sources[i] = &source{entry: f}
	}
	if err := b.read(ctx, env, sources, dom, log, progress); err != nil {
		return nil, err
	}

	current := make(map[string]bool, len(sources))
	for _, s := range sources {
		current[s.entry.DocName] = true
	}
	var removed []string
	for docname := range env.Docs {
		if !current[docname] {
			removed = append(removed, docname)
		}
	}
	slices.Sort(removed)

	moved := merge(env, sources, dom)

	progress("Resolving references")
	links, refs := resolve(env, sources, dom)

	progress("Writing output")
	removed, err = b.export(env, sources, removed, moved, refs)
	if err != nil {
		return nil, err
	}
	if err := b.write(env, sources, removed, links); err != nil {
		return nil, err
	}

	for _, docname := range removed {
		delete(env.Docs, docname)
	}
	for _, s := range sources {
		env.Docs[s.entry.DocName] = DocState{
			Path:   s.entry.Path,
			Format: s.entry.Format,
			Title:  s.tree.Document.Title,
			Hash:   s.hash,
			Key:    s.key,
		}
	}
	if err := SaveEnvironment(b.cfg.EnvPath(), env); err != nil {
		return nil, fmt.Errorf("saving environment: %w", err)
	}

	res := &Result{Env: env}
	res.Documents = len(sources)
	res.Removed = len(removed)
	for _, s := range sources {
		switch {
		case s.cached:
			res.Cached++
		case s.changed:
			res.Read++
		}
	}
	res.Objects = len(env.Tables.Objects)
	res.Namespaces = len(env.Tables.Namespaces)
	for _, docRefs := range refs {
		for _, r := range docRefs {
			res.Refs++
			if r.Resolved == "" {
				res.Unresolved++
			}
		}
	}
	res.Warnings = counter.Warnings()
	res.DurationMs = time.Since(start).Milliseconds()
	res.OutDir = b.cfg.OutDir()

	b.logger.Info("build finished",
		"documents", res.Documents, "read", res.Read, "cached", res.Cached, "removed", res.Removed,
		"objects", res.Objects, "unresolved", res.Unresolved, "warnings", res.Warnings,
		"duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (b *Builder) loadEnvironment(force bool) *Environment {
	domOpts := b.cfg.DomainOptions()
	fresh := newEnvironment(domOpts, b.cfg.PrimaryDomain)
	if force {
		return fresh
	}
	env, err := LoadEnvironment(b.cfg.EnvPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("discarding unreadable environment", "error", err)
		}
		return fresh
	}
	if !env.compatible(domOpts, b.cfg.PrimaryDomain) {
		b.logger.Info("settings changed, rebuilding everything")
		return fresh
	}
	return env
}

// docKey identifies the doctree of a source. The tree depends on the
// settings as well as the content, so both go into the key.
func (b *Builder) docKey(entry discover.FileEntry, src []byte) string {
	optsJSON, _ := json.Marshal(b.cfg.DomainOptions())
	return cas.Key(
		[]byte(strconv.Itoa(envVersion)),
		optsJSON,
		[]byte(b.cfg.PrimaryDomain),
		[]byte(entry.Format),
		[]byte(entry.DocName),
		src,
	)
}

// read fills in the doctree of every source. Unchanged sources and sources
// seen before with the same content come from the store; the rest are
// parsed and walked. Each worker produces an independent tree.
func (b *Builder) read(ctx context.Context, env *Environment, sources []*source, dom *php.Domain, log *slog.Logger, progress func(string)) error {
	walker := docs.NewWalker(dom, b.cfg.PrimaryDomain, log)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())
	for _, s := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(filepath.Join(b.cfg.Root, filepath.FromSlash(s.entry.Path)))
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.entry.Path, err)
			}
			s.hash = cas.Key(src)
			s.key = b.docKey(s.entry, src)

			prev, known := env.Docs[s.entry.DocName]
			s.changed = !known || prev.Key != s.key

			var tree docs.Doctree
			if err := cas.Read(s.key, &tree); err == nil && tree.Document != nil && tree.Tables != nil {
				s.tree = &tree
				s.cached = s.changed
				return nil
			}

			s.changed = true
			progress("Reading " + s.entry.Path)
			s.tree = walker.Walk(parse(s.entry, src))
			if err := cas.Write(s.key, s.tree); err != nil {
				log.Warn("caching doctree failed", "doc", s.entry.DocName, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// parse reads src with the reader for its format.
func parse(entry discover.FileEntry, src []byte) *docs.Document {
	if entry.Format == discover.Markdown {
		return markdown.Read(entry.DocName, src)
	}
	return docs.ParseRST(entry.DocName, src)
}

// merge rebuilds the project tables from the tree of every document in
// source order, so an incremental build ends with the same tables as a
// clean one. A duplicate is reported only when one of the two documents was
// re-read in this build. It returns the unchanged documents whose share of
// the tables moved, for example by winning a name another document dropped.
func merge(env *Environment, sources []*source, dom *php.Domain) map[string]bool {
	changed := make(map[string]bool, len(sources))
	for _, s := range sources {
		if s.changed {
			changed[s.entry.DocName] = true
		}
	}

	tables := php.NewTables()
	for _, s := range sources {
		docname := s.entry.DocName
		for _, o := range s.tree.Objects() {
			if o.NoIndex || o.Decl.Kind == php.KindNamespace {
				continue
			}
			prev, exists := tables.Lookup(o.Decl.Name)
			if exists && prev.DocName != docname && (changed[docname] || changed[prev.DocName]) {
				dom.Register(tables, o.Decl.Name, docname, o.Decl.Kind, o.Line)
				continue
			}
			tables.Register(o.Decl.Name, docname, o.Decl.Kind)
		}
		tables.Merge([]string{docname}, s.tree.Tables)
	}

	moved := make(map[string]bool)
	mark := func(docs ...string) {
		for _, d := range docs {
			if d != "" && !changed[d] {
				moved[d] = true
			}
		}
	}
	for name, o := range env.Tables.Objects {
		if n, ok := tables.Objects[name]; !ok || n != o {
			mark(o.DocName, n.DocName)
		}
	}
	for name, n := range tables.Objects {
		if _, ok := env.Tables.Objects[name]; !ok {
			mark(n.DocName)
		}
	}
	for name, o := range env.Tables.Namespaces {
		if n, ok := tables.Namespaces[name]; !ok || n != o {
			mark(o.DocName, n.DocName)
		}
	}
	for name, n := range tables.Namespaces {
		if _, ok := env.Tables.Namespaces[name]; !ok {
			mark(n.DocName)
		}
	}

	env.Tables = tables
	return moved
}

// resolve runs every pending reference of every document against the
// merged tables.
func resolve(env *Environment, sources []*source, dom *php.Domain) (map[string]map[*docs.Block][]link, map[string][]db.Ref) {
	links := make(map[string]map[*docs.Block][]link, len(sources))
	refs := make(map[string][]db.Ref, len(sources))
	for _, s := range sources {
		docname := s.entry.DocName
		byBlock := make(map[*docs.Block][]link)
		var walk func([]*docs.Block)
		walk = func(blocks []*docs.Block) {
			for _, blk := range blocks {
				for _, ref := range blk.Refs {
					q := ref.Ref.Query(ref.State)
					q.DocName, q.Line = docname, ref.Line

					l := link{ref: ref}
					rec := db.Ref{DocName: docname, Line: ref.Line, Role: ref.Ref.Role, Target: ref.Ref.Target}
					if res, err := dom.Resolve(env.Tables, q); err == nil {
						l.res = &res
						rec.Resolved = res.Name
					}
					byBlock[blk] = append(byBlock[blk], l)
					refs[docname] = append(refs[docname], rec)
				}
				walk(blk.Content)
			}
		}
		walk(s.tree.Document.Blocks)
		links[docname] = byBlock
	}
	return links, refs
}

func (b *Builder) write(env *Environment, sources []*source, removed []string, links map[string]map[*docs.Block][]link) error {
	out := b.cfg.OutDir()
	for _, docname := range removed {
		os.Remove(filepath.Join(out, filepath.FromSlash(docname)+".md"))
	}
	for _, s := range sources {
		p := filepath.Join(out, filepath.FromSlash(s.entry.DocName)+".md")
		if err := writeIfChanged(p, renderDocument(s.tree, links[s.entry.DocName])); err != nil {
			return err
		}
	}

	idx := php.BuildNamespaceIndex(env.Tables, b.cfg.ModIndexCommonPrefix, nil)
	p := filepath.Join(out, "namespaces.md")
	if len(idx.Groups) == 0 {
		os.Remove(p)
		return nil
	}
	return writeIfChanged(p, renderNamespaceIndex(idx))
}

// writeIfChanged leaves files with identical content untouched so their
// modification times stay meaningful.
func writeIfChanged(p, content string) error {
	if old, err := os.ReadFile(p); err == nil && bytes.Equal(old, []byte(content)) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return nil
}

// export mirrors the build into the inventory database. Documents the
// inventory knows but the project no longer has are removed as well; the
// full list of removed documents is returned.
func (b *Builder) export(env *Environment, sources []*source, removed []string, moved map[string]bool, refs map[string][]db.Ref) ([]string, error) {
	database, err := db.New(b.cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening inventory: %w", err)
	}
	defer database.Close()

	known, err := database.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing inventory documents: %w", err)
	}
	current := make(map[string]bool, len(sources))
	for _, s := range sources {
		current[s.entry.DocName] = true
	}
	for _, d := range known {
		if !current[d.DocName] && !slices.Contains(removed, d.DocName) {
			removed = append(removed, d.DocName)
		}
	}
	slices.Sort(removed)

	rebuilt := func(s *source) bool { return s.changed || moved[s.entry.DocName] }
	var changed []db.DocumentData
	for _, s := range sources {
		if !rebuilt(s) {
			continue
		}
		changed = append(changed, documentData(env, s, refs[s.entry.DocName]))
	}
	if err := database.Sync(removed, changed); err != nil {
		return nil, fmt.Errorf("syncing inventory: %w", err)
	}
	for _, s := range sources {
		if rebuilt(s) {
			continue
		}
		if err := database.SetRefs(s.entry.DocName, refs[s.entry.DocName]); err != nil {
			return nil, fmt.Errorf("syncing references: %w", err)
		}
	}
	return removed, nil
}

// documentData collects the inventory rows of one document. Only names the
// merged tables attribute to the document are included.
func documentData(env *Environment, s *source, refs []db.Ref) db.DocumentData {
	docname := s.entry.DocName
	data := db.DocumentData{
		Document: db.Document{
			DocName:     docname,
			Path:        s.entry.Path,
			Format:      string(s.entry.Format),
			Title:       s.tree.Document.Title,
			ContentHash: s.hash,
		},
		Refs: refs,
	}
	for _, o := range s.tree.Objects() {
		if o.NoIndex {
			continue
		}
		name := o.Decl.Name
		if o.Decl.Kind == php.KindNamespace {
			if ns, ok := env.Tables.Namespaces[name]; ok && ns.DocName == docname {
				data.Namespaces = append(data.Namespaces, db.Namespace{
					Name: name, DocName: docname, Synopsis: ns.Synopsis, Deprecated: ns.Deprecated,
				})
			}
			continue
		}
		if obj, ok := env.Tables.Objects[name]; !ok || obj.DocName != docname {
			continue
		}
		data.Objects = append(data.Objects, db.Object{
			Name:      name,
			Kind:      string(o.Decl.Kind),
			DocName:   docname,
			Anchor:    name,
			Signature: php.Text(o.Nodes),
			IndexText: o.IndexText,
			Line:      o.Line,
		})
	}
	return data
}
