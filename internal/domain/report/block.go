// Package report turns the model's markdown-like review text into typed
// display blocks and download artifacts.
package report

// Kind of a display block.
type Kind string

const (
	KindHeader     Kind = "header"
	KindStatus     Kind = "status"
	KindList       Kind = "list"
	KindTable      Kind = "table"
	KindParagraph  Kind = "paragraph"
	KindDeficiency Kind = "deficiency"
)

// Status of a reviewed field, taken from the glyph on the line.
type Status string

const (
	StatusOK    Status = "ok"
	StatusWarn  Status = "warn"
	StatusError Status = "error"
)

// Span is a run of inline text; Bold marks a **bold** span.
type Span struct {
	Text string `json:"text"`
	Bold bool   `json:"bold,omitempty"`
}

// Block is one rendered unit. Which fields are set depends on Kind:
//
//	header      Level, Text
//	status      Status, Text, Spans
//	list        Ordered, Items
//	table       Headers, Rows
//	paragraph   Text, Spans, Bold (standalone **line**)
//	deficiency  Level, Text (heading), Lines (body as written), CopyText
//
// Source always holds the non-blank input lines the block consumed.
type Block struct {
	Kind     Kind       `json:"kind"`
	Level    int        `json:"level,omitempty"`
	Text     string     `json:"text,omitempty"`
	Bold     bool       `json:"bold,omitempty"`
	Status   Status     `json:"status,omitempty"`
	Ordered  bool       `json:"ordered,omitempty"`
	Items    []string   `json:"items,omitempty"`
	Headers  []string   `json:"headers,omitempty"`
	Rows     [][]string `json:"rows,omitempty"`
	Spans    []Span     `json:"spans,omitempty"`
	Lines    []string   `json:"lines,omitempty"`
	CopyText string     `json:"copy_text,omitempty"`
	Source   []string   `json:"-"`
}
