package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadName(t *testing.T) {
	day := time.Date(2026, 3, 9, 17, 4, 0, 0, time.UTC)
	assert.Equal(t, "form_apr_review_2026-03-09.txt", DownloadName(day))
}

func TestToPlainTextIsVerbatim(t *testing.T) {
	in := "# Report\n\n  indented ✅\n"
	assert.Equal(t, in, ToPlainText(in))
}

func TestToHTMLRendersTablesAndEscapesHTML(t *testing.T) {
	out, err := ToHTML("# Title\n\n| A | B |\n|---|---|\n| 1 | 2 |\n\n<script>x</script>")
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, "<table>")
	assert.NotContains(t, html, "<script>")
}

func TestParseInlineEdgeCases(t *testing.T) {
	assert.Nil(t, parseInline(""))
	assert.Equal(t, []Span{{Text: "****"}}, parseInline("****"))
	assert.Equal(t, []Span{{Text: "a", Bold: true}}, parseInline("**a**"))
}
