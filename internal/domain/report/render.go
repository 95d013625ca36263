package report

import (
	"regexp"
	"strings"
)

var (
	unorderedItem  = regexp.MustCompile(`^[-*•]\s+(.*)$`)
	orderedItem    = regexp.MustCompile(`^\d+\.\s+(.*)$`)
	deficiencyHead = regexp.MustCompile(`(?i)document\s+deficienc(?:y|ies)|deficiency\s+list`)
)

// Render classifies the lines of text into display blocks in one forward
// pass. Rules are tried in a fixed order and the first match consumes the
// line; nothing in here can fail, unrecognised input becomes paragraphs.
func Render(text string) []Block {
	p := &renderer{lines: splitLines(text)}
	p.run()
	return p.out
}

type renderer struct {
	lines []string
	pos   int
	out   []Block
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

func (r *renderer) line(i int) string { return strings.TrimSpace(r.lines[i]) }

func (r *renderer) run() {
	for r.pos < len(r.lines) {
		line := r.line(r.pos)
		if line == "" {
			r.pos++
			continue
		}
		if strings.HasPrefix(line, "#") {
			r.header(line)
			continue
		}
		if inner, ok := standaloneBold(line); ok {
			r.emit(Block{Kind: KindParagraph, Text: inner, Bold: true, Spans: []Span{{Text: inner, Bold: true}}, Source: []string{line}})
			r.pos++
			continue
		}
		if st := statusOf(line); st != "" {
			r.emit(Block{Kind: KindStatus, Status: st, Text: line, Spans: parseInline(line), Source: []string{line}})
			r.pos++
			continue
		}
		if ordered, _, ok := listItem(line); ok {
			r.list(ordered)
			continue
		}
		if r.tableStarts(line) {
			r.table()
			continue
		}
		r.emit(Block{Kind: KindParagraph, Text: line, Spans: parseInline(line), Source: []string{line}})
		r.pos++
	}
}

func (r *renderer) emit(b Block) { r.out = append(r.out, b) }

func headerLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	return n
}

func (r *renderer) header(line string) {
	level := headerLevel(line)
	text := strings.TrimSpace(strings.TrimLeft(line, "#"))
	r.pos++
	if !deficiencyHead.MatchString(text) {
		r.emit(Block{Kind: KindHeader, Level: level, Text: text, Source: []string{line}})
		return
	}

	// Deficiency section runs until the next header at the same or a shallower level.
	b := Block{Kind: KindDeficiency, Level: level, Text: text, Source: []string{line}}
	var copyLines []string
	for r.pos < len(r.lines) {
		next := r.line(r.pos)
		if strings.HasPrefix(next, "#") && headerLevel(next) <= level {
			break
		}
		r.pos++
		if next == "" {
			continue
		}
		b.Lines = append(b.Lines, next)
		b.Source = append(b.Source, next)
		if item := normalizeBullet(next); item != "" {
			copyLines = append(copyLines, "• "+item)
		}
	}
	b.CopyText = strings.Join(copyLines, "\n")
	r.emit(b)
}

// normalizeBullet strips list markers, heading marks and bold markers.
func normalizeBullet(line string) string {
	if _, item, ok := listItem(line); ok {
		line = item
	}
	line = strings.TrimLeft(line, "#")
	line = strings.ReplaceAll(line, boldMarker, "")
	return strings.TrimSpace(line)
}

func listItem(line string) (ordered bool, item string, ok bool) {
	if m := orderedItem.FindStringSubmatch(line); m != nil {
		return true, strings.TrimSpace(m[1]), true
	}
	if m := unorderedItem.FindStringSubmatch(line); m != nil {
		return false, strings.TrimSpace(m[1]), true
	}
	return false, "", false
}

func (r *renderer) list(ordered bool) {
	b := Block{Kind: KindList, Ordered: ordered}
	for r.pos < len(r.lines) {
		line := r.line(r.pos)
		o, item, ok := listItem(line)
		if !ok || o != ordered {
			break
		}
		b.Items = append(b.Items, item)
		b.Source = append(b.Source, line)
		r.pos++
	}
	r.emit(b)
}

func (r *renderer) tableStarts(line string) bool {
	if !strings.Contains(line, "|") || r.pos+1 >= len(r.lines) {
		return false
	}
	if !strings.Contains(r.lines[r.pos+1], "|") {
		return false
	}
	return len(cells(line)) > 0
}

func (r *renderer) table() {
	head := r.line(r.pos)
	sep := r.line(r.pos + 1)
	b := Block{Kind: KindTable, Headers: cells(head), Source: []string{head, sep}}
	r.pos += 2
	for r.pos < len(r.lines) {
		line := r.line(r.pos)
		if !strings.Contains(line, "|") {
			break
		}
		if row := cells(line); len(row) > 0 {
			b.Rows = append(b.Rows, row)
		}
		b.Source = append(b.Source, line)
		r.pos++
	}
	r.emit(b)
}

// cells splits a pipe-delimited line into trimmed, non-empty cells.
func cells(line string) []string {
	var out []string
	for _, c := range strings.Split(line, "|") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
