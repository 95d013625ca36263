package report

import "strings"

// Checked in order; the first kind with a glyph on the line wins, so the
// most severe status is reported when glyphs are mixed.
var statusGlyphs = []struct {
	status Status
	glyphs []string
}{
	{StatusError, []string{"❌", "✗"}},
	{StatusWarn, []string{"⚠"}},
	{StatusOK, []string{"✅", "✔"}},
}

// statusOf returns the status carried by line, or "" when it has no glyph.
func statusOf(line string) Status {
	for _, g := range statusGlyphs {
		for _, glyph := range g.glyphs {
			if strings.Contains(line, glyph) {
				return g.status
			}
		}
	}
	return ""
}
