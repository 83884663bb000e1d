package docs

import (
	"regexp"
	"strings"
)

var (
	directiveRe = regexp.MustCompile(`^\.\.\s+([A-Za-z][\w:.-]*)::(?:\s+(.*))?$`)
	optionRe    = regexp.MustCompile(`^:([\w-]+):(?:\s+(.*))?$`)
)

const underlineChars = "=-~^\"'*+#`:._"

// ParseRST reads the reStructuredText subset used by documentation sources:
// section titles, paragraphs, directives with arguments, options and
// indented content, and interpreted-text roles. Everything else is kept as
// plain text.
func ParseRST(docname string, src []byte) *Document {
	text := strings.ReplaceAll(string(src), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", "        ")
	r := &rstReader{levels: make(map[string]int)}
	doc := &Document{DocName: docname}
	doc.Blocks = r.blocks(strings.Split(text, "\n"), 1)
	for _, b := range doc.Blocks {
		if b.Type == HeadingBlock {
			doc.Title = b.Text
			break
		}
	}
	return doc
}

type rstReader struct {
	levels map[string]int
}

func blank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// indented returns the end of the indented block starting at i. Blank lines
// belong to the block when more indented lines follow them.
func indented(lines []string, i int) int {
	end := i
	for j := i; j < len(lines); j++ {
		if blank(lines[j]) {
			continue
		}
		if indentOf(lines[j]) == 0 {
			break
		}
		end = j + 1
	}
	return end
}

// dedent strips the common leading indentation of lines.
func dedent(lines []string) []string {
	depth := -1
	for _, l := range lines {
		if blank(l) {
			continue
		}
		if n := indentOf(l); depth < 0 || n < depth {
			depth = n
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if depth > 0 && len(l) >= depth {
			out[i] = l[depth:]
		} else {
			out[i] = strings.TrimLeft(l, " ")
		}
	}
	return out
}

func isUnderline(line string, minLen int) bool {
	line = strings.TrimRight(line, " ")
	if len(line) < 3 || len(line) < minLen || !strings.ContainsRune(underlineChars, rune(line[0])) {
		return false
	}
	return strings.Count(line, line[:1]) == len(line)
}

func (r *rstReader) level(style string) int {
	if lvl, ok := r.levels[style]; ok {
		return lvl
	}
	lvl := len(r.levels) + 1
	r.levels[style] = lvl
	return lvl
}

// blocks parses lines whose first line is line number first.
func (r *rstReader) blocks(lines []string, first int) []*Block {
	var out []*Block
	literalNext := false
	i := 0
	for i < len(lines) {
		line := lines[i]
		if blank(line) {
			i++
			continue
		}

		if indentOf(line) > 0 {
			end := indented(lines, i)
			if !literalNext {
				out = append(out, r.blocks(dedent(lines[i:end]), first+i)...)
			}
			literalNext = false
			i = end
			continue
		}
		literalNext = false

		trimmed := strings.TrimRight(line, " ")
		if strings.HasPrefix(trimmed, "..") && (len(trimmed) == 2 || trimmed[2] == ' ') {
			if m := directiveRe.FindStringSubmatch(trimmed); m != nil {
				b, next := r.directive(lines, i, first, m)
				out = append(out, b)
				i = next
				continue
			}
			// Comment or hyperlink target: skip it with its indented body.
			i = indented(lines, i+1)
			continue
		}

		// Overlined title.
		if i+2 < len(lines) && isUnderline(trimmed, 0) && !blank(lines[i+1]) &&
			strings.TrimRight(lines[i+2], " ") == trimmed {
			out = append(out, r.heading(strings.TrimSpace(lines[i+1]), first+i+1, trimmed[:1]+"over"))
			i += 3
			continue
		}

		// Underlined title.
		if i+1 < len(lines) && isUnderline(lines[i+1], len(strings.TrimSpace(trimmed))) {
			out = append(out, r.heading(strings.TrimSpace(trimmed), first+i, lines[i+1][:1]))
			i += 2
			continue
		}

		start := i
		for i < len(lines) && !blank(lines[i]) && indentOf(lines[i]) == 0 &&
			!directiveRe.MatchString(strings.TrimRight(lines[i], " ")) {
			i++
		}
		text := strings.Join(lines[start:i], "\n")
		if strings.HasSuffix(text, "::") {
			literalNext = true
			text = strings.TrimSuffix(text, ":")
			if strings.HasSuffix(text, " :") {
				text = strings.TrimSuffix(text, " :")
			}
		}
		out = append(out, &Block{Type: TextBlock, Line: first + start, Text: text, Roles: ScanRoles(text)})
	}
	return out
}

func (r *rstReader) heading(text string, line int, style string) *Block {
	return &Block{Type: HeadingBlock, Line: line, Text: text, Level: r.level(style), Roles: ScanRoles(text)}
}

// directive reads the directive starting at lines[i] and returns it with the
// index of the first line after it.
func (r *rstReader) directive(lines []string, i, first int, m []string) (*Block, int) {
	b := &Block{Type: DirectiveBlock, Line: first + i, Name: m[1]}
	if arg := strings.TrimSpace(m[2]); arg != "" {
		b.Args = append(b.Args, arg)
	}
	i++

	// Further signature lines, then the option list, up to the first blank
	// line.
	lastOption := ""
	for i < len(lines) && !blank(lines[i]) && indentOf(lines[i]) > 0 {
		t := strings.TrimSpace(lines[i])
		switch om := optionRe.FindStringSubmatch(t); {
		case om != nil:
			if b.Options == nil {
				b.Options = make(map[string]string)
			}
			lastOption = om[1]
			b.Options[lastOption] = strings.TrimSpace(om[2])
		case lastOption != "":
			b.Options[lastOption] = strings.TrimSpace(b.Options[lastOption] + " " + t)
		default:
			b.Args = append(b.Args, t)
		}
		i++
	}

	start := i
	end := indented(lines, i)
	if end > start {
		b.Content = r.blocks(dedent(lines[start:end]), first+start)
	}
	return b, end
}
