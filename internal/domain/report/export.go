package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DownloadPrefix is the fixed prefix of the downloadable report file.
const DownloadPrefix = "form_apr_review"

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ToPlainText is the download body: the analysis text, verbatim.
func ToPlainText(text string) string { return text }

// DownloadName names the download after the given day.
func DownloadName(t time.Time) string {
	return fmt.Sprintf("%s_%s.txt", DownloadPrefix, t.Format("2006-01-02"))
}

// ToHTML renders the analysis text as HTML. Raw HTML in the input is escaped.
func ToHTML(text string) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// ToMarkdown writes blocks back out as markdown-like text. Spacing and
// table separators are normalised, so the result is not the original input.
func ToMarkdown(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, blockMarkdown(b))
	}
	return strings.Join(parts, "\n\n")
}

func blockMarkdown(b Block) string {
	switch b.Kind {
	case KindHeader:
		return strings.Repeat("#", b.Level) + " " + b.Text
	case KindDeficiency:
		lines := append([]string{strings.Repeat("#", b.Level) + " " + b.Text}, b.Lines...)
		return strings.Join(lines, "\n")
	case KindList:
		lines := make([]string, len(b.Items))
		for i, item := range b.Items {
			if b.Ordered {
				lines[i] = fmt.Sprintf("%d. %s", i+1, item)
			} else {
				lines[i] = "- " + item
			}
		}
		return strings.Join(lines, "\n")
	case KindTable:
		lines := []string{tableRow(b.Headers), tableRow(separator(len(b.Headers)))}
		for _, row := range b.Rows {
			lines = append(lines, tableRow(row))
		}
		return strings.Join(lines, "\n")
	case KindParagraph:
		if b.Bold {
			return boldMarker + b.Text + boldMarker
		}
		return b.Text
	default:
		return b.Text
	}
}

func tableRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

func separator(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "---"
	}
	return out
}
