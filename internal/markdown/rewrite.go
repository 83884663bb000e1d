package markdown

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
)

// extensions are the parser extensions used for documentation sources. Math
// is off so PHP variables are not read as formulas.
const extensions = (gmparser.CommonExtensions | gmparser.Autolink) &^ gmparser.MathJax

func newParser() *gmparser.Parser {
	return gmparser.NewWithExtensions(extensions)
}

// RewriteLinks rewrites markdown link destinations using the provided link map.
// It parses the markdown to AST to find all link destinations, then performs
// targeted string replacements to preserve original formatting.
func RewriteLinks(src string, linkMap map[string]string) string {
	if len(linkMap) == 0 {
		return src
	}

	doc := gm.Parse([]byte(src), newParser())

	seen := make(map[string]bool)
	type replacement struct {
		oldDest string
		newDest string
	}
	var replacements []replacement

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if link, ok := node.(*ast.Link); ok {
			dest := string(link.Destination)
			if newDest, ok := linkMap[dest]; ok && !seen[dest] {
				seen[dest] = true
				replacements = append(replacements, replacement{dest, newDest})
			}
		}
		return ast.GoToNext
	})

	if len(replacements) == 0 {
		return src
	}

	result := src
	for _, r := range replacements {
		result = strings.ReplaceAll(result, "]("+r.oldDest+")", "]("+r.newDest+")")
		if esc := EscapeDestination(r.oldDest); esc != r.oldDest {
			result = strings.ReplaceAll(result, "]("+esc+")", "]("+r.newDest+")")
		}
	}

	// Reference-style definitions: [ref]: destination
	refMap := make(map[string]string, len(replacements))
	for _, r := range replacements {
		refMap["]: "+r.oldDest] = "]: " + r.newDest
		refMap["]: "+EscapeDestination(r.oldDest)] = "]: " + r.newDest
	}
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for oldSuffix, newSuffix := range refMap {
			if strings.HasSuffix(trimmed, oldSuffix) {
				lines[i] = strings.Replace(line, oldSuffix, newSuffix, 1)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// EscapeDestination returns dest as it is written in a link. The parser drops
// every backslash from destinations, so namespace separators are doubled.
func EscapeDestination(dest string) string {
	return strings.ReplaceAll(dest, `\`, `\\`)
}

// AddFrontMatter prepends a YAML front-matter block mapping each key to its
// value. Keys and values are quoted because PHP names contain ':' and '\'.
func AddFrontMatter(src string, fields map[string]string) string {
	if len(fields) == 0 {
		return src
	}

	var b strings.Builder
	b.WriteString("---\n")
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		b.WriteString(strconv.Quote(k))
		b.WriteString(": ")
		b.WriteString(strconv.Quote(fields[k]))
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(src)
	return b.String()
}
