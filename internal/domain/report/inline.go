package report

import "strings"

const boldMarker = "**"

// parseInline splits s into plain and bold spans. Bold spans never nest and
// an unmatched ** stays literal.
func parseInline(s string) []Span {
	var spans []Span
	var plain strings.Builder
	flush := func() {
		if plain.Len() > 0 {
			spans = append(spans, Span{Text: plain.String()})
			plain.Reset()
		}
	}

	rest := s
	for {
		open := strings.Index(rest, boldMarker)
		if open < 0 {
			plain.WriteString(rest)
			break
		}
		closeAt := strings.Index(rest[open+len(boldMarker):], boldMarker)
		if closeAt < 0 {
			plain.WriteString(rest)
			break
		}
		inner := rest[open+len(boldMarker) : open+len(boldMarker)+closeAt]
		plain.WriteString(rest[:open])
		if inner == "" {
			plain.WriteString(boldMarker + boldMarker)
		} else {
			flush()
			spans = append(spans, Span{Text: inner, Bold: true})
		}
		rest = rest[open+2*len(boldMarker)+closeAt:]
	}
	flush()
	return spans
}

// standaloneBold returns the inner text when the whole line is one **span**.
func standaloneBold(line string) (string, bool) {
	if len(line) <= 2*len(boldMarker) {
		return "", false
	}
	if !strings.HasPrefix(line, boldMarker) || !strings.HasSuffix(line, boldMarker) {
		return "", false
	}
	inner := line[len(boldMarker) : len(line)-len(boldMarker)]
	if strings.Contains(inner, boldMarker) || strings.TrimSpace(inner) == "" {
		return "", false
	}
	return inner, true
}
