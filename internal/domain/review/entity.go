package review

import (
	"path/filepath"
	"strings"
)

// MaxPrimaryBytes batas ukuran Form APR (10 MB).
const MaxPrimaryBytes int64 = 10_000_000

// FileHandle is an uploaded file held in memory for the lifetime of a session.
type FileHandle struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`
}

// FileKind enum
type FileKind string

const (
	KindPDF         FileKind = "pdf"
	KindSpreadsheet FileKind = "spreadsheet"
	KindUnsupported FileKind = "unsupported"
)

// Kind classifies the file by content type first, then by extension.
func (f FileHandle) Kind() FileKind {
	ct := strings.ToLower(f.ContentType)
	ext := strings.ToLower(filepath.Ext(f.Name))
	switch {
	case ct == "application/pdf" || ext == ".pdf":
		return KindPDF
	case strings.Contains(ct, "spreadsheet"),
		strings.Contains(ct, "excel"),
		strings.Contains(ct, "csv"),
		ext == ".xlsx", ext == ".xls", ext == ".csv":
		return KindSpreadsheet
	default:
		return KindUnsupported
	}
}

// ExtractedDocument is the normalized output of one extraction call.
// TextContent and OCRContent may both be set; consumers concatenate them.
type ExtractedDocument struct {
	TextContent string   `json:"text_content"`
	OCRContent  string   `json:"ocr_content"`
	PageCount   int      `json:"page_count"`
	Images      [][]byte `json:"-"`
}

// Content joins the OCR text and the text layer, OCR first. Blank parts are skipped.
func (d ExtractedDocument) Content() string {
	ocr := strings.TrimSpace(d.OCRContent)
	text := strings.TrimSpace(d.TextContent)
	switch {
	case ocr == "":
		return text
	case text == "":
		return ocr
	}
	return ocr + "\n\n" + text
}

// AnalysisRequest pairs the fixed rubric with the assembled user content.
type AnalysisRequest struct {
	InstructionPrompt string
	UserContent       string
}

// State of an orchestration run.
type State string

const (
	StateIdle                 State = "idle"
	StateExtractingPrimary    State = "extracting_primary"
	StateExtractingSupporting State = "extracting_supporting"
	StateAnalyzing            State = "analyzing"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

// Working reports whether a run is in flight in this state.
func (s State) Working() bool {
	switch s {
	case StateExtractingPrimary, StateExtractingSupporting, StateAnalyzing:
		return true
	}
	return false
}

// Result is what every run resolves to: report text, plus the error when the run failed.
type Result struct {
	Text string         `json:"text"`
	Err  *AnalysisError `json:"error,omitempty"`
}

// Failed reports whether the run ended in an error report.
func (r Result) Failed() bool { return r.Err != nil }
