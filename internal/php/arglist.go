package php

import "strings"

// Param is a literal parameter token or an optional group of parameters.
type Param struct {
	Text     string   `json:"text,omitempty"`
	Optional bool     `json:"optional,omitempty"`
	Children []*Param `json:"children,omitempty"`
}

// ArgList is a split parameter list. Outcome is FallbackApplied when the
// optional-group brackets did not balance and Params holds the whole raw
// string as a single literal.
type ArgList struct {
	Params  []*Param `json:"params,omitempty"`
	Outcome Outcome  `json:"outcome"`
}

// SplitArgs splits the text between a signature's parentheses into
// parameters. Leading "[" and trailing "[" open an optional group, leading
// "]" and trailing "]" (but not "[]") close one. Commas inside default values
// are not understood.
func SplitArgs(raw string) ArgList {
	flat := ArgList{Params: []*Param{{Text: raw}}, Outcome: FallbackApplied}

	root := &Param{}
	stack := []*Param{root}
	push := func() {
		g := &Param{Optional: true}
		top := stack[len(stack)-1]
		top.Children = append(top.Children, g)
		stack = append(stack, g)
	}

	for _, arg := range strings.Split(raw, ",") {
		arg = strings.TrimSpace(arg)
		var opens, closes int

		for strings.HasPrefix(arg, "[") {
			push()
			arg = strings.TrimSpace(arg[1:])
		}
		for strings.HasPrefix(arg, "]") {
			if len(stack) == 1 {
				return flat
			}
			stack = stack[:len(stack)-1]
			arg = strings.TrimSpace(arg[1:])
		}
		for strings.HasSuffix(arg, "]") && !strings.HasSuffix(arg, "[]") {
			closes++
			arg = strings.TrimSpace(arg[:len(arg)-1])
		}
		for strings.HasSuffix(arg, "[") {
			opens++
			arg = strings.TrimSpace(arg[:len(arg)-1])
		}

		if arg != "" {
			top := stack[len(stack)-1]
			top.Children = append(top.Children, &Param{Text: arg})
		}
		for ; opens > 0; opens-- {
			push()
		}
		for ; closes > 0; closes-- {
			if len(stack) == 1 {
				return flat
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) != 1 {
		return flat
	}
	return ArgList{Params: root.Children, Outcome: OK}
}

// String renders the list in bracket notation, e.g. "$a[, $b[, $c]]".
func (a ArgList) String() string {
	var b strings.Builder
	writeParams(&b, a.Params)
	return b.String()
}

func writeParams(b *strings.Builder, params []*Param) {
	for i, p := range params {
		if p.Optional {
			b.WriteString("[")
			if i > 0 {
				b.WriteString(", ")
			}
			writeParams(b, p.Children)
			b.WriteString("]")
			continue
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Text)
	}
}
