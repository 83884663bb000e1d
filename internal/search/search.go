package search

import (
	"cmp"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/jcdickinson/phpdomain/internal/db"
	"github.com/jcdickinson/phpdomain/internal/rpc"
)

const defaultLimit = 20

type Searcher struct {
	db *db.DB
}

func NewSearcher(database *db.DB) *Searcher {
	return &Searcher{db: database}
}

// Search ranks inventory objects by how well their names match query.
// Exact canonical names come first, then exact short names, qualified
// suffixes, short-name prefixes and finally plain substrings.
func (s *Searcher) Search(query string, kinds []string, limit int) ([]rpc.ObjectResult, error) {
	query = strings.TrimPrefix(strings.TrimSpace(query), `\`)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	slog.Debug("search", "query", query, "kinds", kinds, "limit", limit)

	candidates, err := s.db.MatchObjects(query, kinds)
	if err != nil {
		return nil, fmt.Errorf("matching objects: %w", err)
	}

	results := make([]rpc.ObjectResult, 0, len(candidates))
	for _, o := range candidates {
		score := Score(query, o.Name)
		if score <= 0 {
			continue
		}
		r := Result(o)
		r.Score = score
		results = append(results, r)
	}
	slices.SortStableFunc(results, func(a, b rpc.ObjectResult) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(len(a.Name), len(b.Name)), cmp.Compare(a.Name, b.Name))
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Result converts an inventory row to its wire form.
func Result(o db.Object) rpc.ObjectResult {
	return rpc.ObjectResult{
		URI:       URI(o.Name),
		Name:      o.Name,
		Kind:      o.Kind,
		DocName:   o.DocName,
		Anchor:    o.Anchor,
		Signature: o.Signature,
		IndexText: o.IndexText,
		Line:      o.Line,
	}
}

const uriScheme = "phpdoc://"

// URI is the resource address of an object. Backslashes may not appear in
// URIs, so the name is percent-encoded.
func URI(name string) string {
	return uriScheme + url.PathEscape(name)
}

// NameFromURI returns the canonical name a URI addresses.
func NameFromURI(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, uriScheme)
	if !ok || rest == "" {
		return "", false
	}
	name, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return name, true
}

// ShortName strips the namespace and owner from a canonical name.
func ShortName(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return strings.TrimPrefix(name[i+2:], "$")
	}
	if i := strings.LastIndex(name, `\`); i >= 0 {
		return name[i+1:]
	}
	return strings.TrimPrefix(name, "$")
}

// Score rates how well query matches name, between 0 and 1.
func Score(query, name string) float32 {
	short := ShortName(name)
	lq, lname, lshort := strings.ToLower(query), strings.ToLower(name), strings.ToLower(short)
	switch {
	case name == query:
		return 1
	case lname == lq:
		return 0.95
	case short == query:
		return 0.9
	case lshort == lq:
		return 0.85
	case strings.HasSuffix(lname, `\`+lq) || strings.HasSuffix(lname, "::"+lq):
		return 0.75
	case strings.HasPrefix(lshort, lq):
		return 0.5 + 0.2*float32(len(lq))/float32(len(lshort))
	case strings.Contains(lname, lq):
		return 0.4 * float32(len(lq)) / float32(len(lname))
	}
	return 0
}
