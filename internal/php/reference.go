package php

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	explicitTitleRe = regexp.MustCompile(`(?s)^(.+?)\s*<(.*?)>$`)
	ownerPrefixRe   = regexp.MustCompile(`^[\w\\]+::`)
)

// Reference is a parsed cross-reference role.
type Reference struct {
	Role          string `json:"role"`
	Kind          Kind   `json:"kind"`
	Target        string `json:"target"`
	Title         string `json:"title"`
	ExplicitTitle bool   `json:"explicit_title,omitempty"`
	SearchOrder   int    `json:"search_order,omitempty"`
}

// ParseReference splits the text of a role into title and target.
//
//	Title <target>   explicit title
//	~App\Widget::go  title shows only "go"
//	\App\Widget      the leading \ is not shown
//	.render          try the most specific scope first
func ParseReference(role, text string) (Reference, error) {
	kind, ok := RoleKind(role)
	if !ok {
		return Reference{}, fmt.Errorf("unknown php role %q", role)
	}
	ref := Reference{Role: role, Kind: kind}

	text = strings.TrimSpace(text)
	if m := explicitTitleRe.FindStringSubmatch(text); m != nil {
		ref.Title, ref.Target, ref.ExplicitTitle = m[1], strings.TrimSpace(m[2]), true
	} else {
		ref.Title, ref.Target = text, text
	}

	if !ref.ExplicitTitle {
		if strings.HasPrefix(ref.Target, "~") {
			ref.Target = ref.Target[1:]
		}
		if strings.HasPrefix(ref.Title, "~") {
			ref.Title = ownerPrefixRe.ReplaceAllString(ref.Title[1:], "")
		}
	}
	if strings.HasPrefix(ref.Target, ".") {
		ref.Target = ref.Target[1:]
		ref.SearchOrder = 1
		if !ref.ExplicitTitle {
			ref.Title = strings.TrimPrefix(ref.Title, ".")
		}
	}
	if !ref.ExplicitTitle {
		ref.Title = strings.TrimPrefix(ref.Title, NS)
	}
	return ref, nil
}

// Query builds the resolver query for the reference made under st.
func (r Reference) Query(st AmbientState) Query {
	q := NewQuery(r.Kind, r.Target, st)
	q.SearchOrder = r.SearchOrder
	return q
}
