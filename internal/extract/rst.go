package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jcdickinson/phpdomain/internal/discover"
)

// RST writes the declarations of f as php domain directives. Namespaces are
// entered with currentnamespace so stubs never claim the namespace itself.
func (f *File) RST() string {
	var b strings.Builder
	title := f.Path
	fmt.Fprintf(&b, "%s\n%s\n", title, strings.Repeat("=", len(title)))

	first := true
	for _, ns := range f.Namespaces {
		if len(ns.Decls) == 0 {
			continue
		}
		switch {
		case ns.Name != "":
			fmt.Fprintf(&b, "\n.. php:currentnamespace:: %s\n", ns.Name)
		case !first:
			b.WriteString("\n.. php:currentnamespace:: None\n")
		}
		first = false
		for _, d := range ns.Decls {
			writeDecl(&b, d, "")
		}
	}
	return b.String()
}

func writeDecl(b *strings.Builder, d Decl, indent string) {
	fmt.Fprintf(b, "\n%s.. php:%s:: %s\n", indent, d.Kind, d.Signature)
	inner := indent + "   "
	if d.Summary != "" {
		fmt.Fprintf(b, "\n%s%s\n", inner, d.Summary)
	}
	for _, m := range d.Members {
		writeDecl(b, m, inner)
	}
}

// Tree scans every PHP file under root and returns the files that declare
// something, keyed by path relative to root.
func (e *Extractor) Tree(ctx context.Context, root string, excludes []string) ([]*File, error) {
	entries, err := discover.Files(root, []string{".php"}, excludes)
	if err != nil {
		return nil, err
	}
	var files []*File
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(entry.Path)))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Path, err)
		}
		f, err := e.Source(ctx, entry.Path, src)
		if err != nil {
			return nil, err
		}
		if !f.Empty() {
			files = append(files, f)
		}
	}
	return files, nil
}

// WriteTree writes one stub per file below out, mirroring the source layout
// with an .rst suffix.
func WriteTree(out string, files []*File) error {
	for _, f := range files {
		p := filepath.Join(out, filepath.FromSlash(strings.TrimSuffix(f.Path, filepath.Ext(f.Path)))+".rst")
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(f.RST()), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", p, err)
		}
	}
	return nil
}
