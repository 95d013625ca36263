package mistral

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

// errEmptyResponse a known response shape that carried no text at all.
var errEmptyResponse = errors.New("ocr response contained no text")

const pagesSchema = `{
  "type": "object",
  "required": ["pages"],
  "properties": {
    "pages": {"type": "array", "items": {"type": "object"}},
    "text": {"type": ["string", "null"]}
  }
}`

const textSchema = `{
  "type": "object",
  "required": ["text"],
  "properties": {"text": {"type": "string"}}
}`

// nested wraps a schema under a "result" object.
func nested(inner string) string {
	return `{"type": "object", "required": ["result"], "properties": {"result": ` + inner + `}}`
}

type ocrImage struct {
	ImageBase64 string `json:"image_base64"`
}

type ocrPage struct {
	PageNumber *int       `json:"pageNumber"`
	Index      *int       `json:"index"`
	Text       string     `json:"text"`
	Content    string     `json:"content"`
	Markdown   string     `json:"markdown"`
	Images     []ocrImage `json:"images"`
}

func (p ocrPage) body() string {
	for _, s := range []string{p.Text, p.Markdown, p.Content} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// number prefers an explicit page number, then a zero-based index, then the position.
func (p ocrPage) number(pos int) int {
	if p.PageNumber != nil && *p.PageNumber > 0 {
		return *p.PageNumber
	}
	if p.Index != nil && *p.Index >= 0 {
		return *p.Index + 1
	}
	return pos + 1
}

type pagesBody struct {
	Pages []ocrPage `json:"pages"`
	Text  string    `json:"text"`
}

type shape struct {
	name   string
	schema *jsonschema.Schema
	decode func(raw []byte) (review.ExtractedDocument, error)
}

// shapes are tried in order; the first whose schema validates wins.
var shapes = []shape{
	{
		name:   "pages",
		schema: jsonschema.MustCompileString("pages.json", pagesSchema),
		decode: decodePages,
	},
	{
		name:   "result.pages",
		schema: jsonschema.MustCompileString("result_pages.json", nested(pagesSchema)),
		decode: func(raw []byte) (review.ExtractedDocument, error) {
			var env struct {
				Result json.RawMessage `json:"result"`
			}
			if err := json.Unmarshal(raw, &env); err != nil {
				return review.ExtractedDocument{}, err
			}
			return decodePages(env.Result)
		},
	},
	{
		name:   "text",
		schema: jsonschema.MustCompileString("text.json", textSchema),
		decode: func(raw []byte) (review.ExtractedDocument, error) {
			var body struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return review.ExtractedDocument{}, err
			}
			return textOnly(body.Text)
		},
	},
	{
		name:   "result.text",
		schema: jsonschema.MustCompileString("result_text.json", nested(textSchema)),
		decode: func(raw []byte) (review.ExtractedDocument, error) {
			var env struct {
				Result struct {
					Text string `json:"text"`
				} `json:"result"`
			}
			if err := json.Unmarshal(raw, &env); err != nil {
				return review.ExtractedDocument{}, err
			}
			return textOnly(env.Result.Text)
		},
	},
}

func decodePages(raw []byte) (review.ExtractedDocument, error) {
	var body pagesBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return review.ExtractedDocument{}, err
	}

	doc := review.ExtractedDocument{PageCount: len(body.Pages)}
	var b strings.Builder
	for i, p := range body.Pages {
		if text := p.body(); text != "" {
			fmt.Fprintf(&b, "\n--- Page %d ---\n%s\n", p.number(i), text)
		}
		for _, img := range p.Images {
			if data, ok := decodeImage(img.ImageBase64); ok {
				doc.Images = append(doc.Images, data)
			}
		}
	}
	doc.OCRContent = strings.TrimSpace(b.String())
	doc.TextContent = strings.TrimSpace(body.Text)
	if doc.OCRContent == "" && doc.TextContent == "" {
		return review.ExtractedDocument{}, errEmptyResponse
	}
	return doc, nil
}

func textOnly(text string) (review.ExtractedDocument, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return review.ExtractedDocument{}, errEmptyResponse
	}
	return review.ExtractedDocument{TextContent: text, PageCount: 1}, nil
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(s string) ([]byte, bool) {
	if s == "" {
		return nil, false
	}
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return data, true
}

const (
	unrecognizedPrefix = "[Unrecognized OCR response]\n"
	maxRawFallback     = 64 << 10
)

// Normalize maps an OCR response body onto an ExtractedDocument. Bodies that
// match no known shape, JSON or not, are kept as diagnostic text.
func Normalize(raw []byte) (review.ExtractedDocument, string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return review.ExtractedDocument{
			TextContent: unrecognizedPrefix + truncate(strings.TrimSpace(string(raw)), maxRawFallback),
		}, "fallback", nil
	}
	for _, s := range shapes {
		if s.schema.Validate(v) != nil {
			continue
		}
		doc, err := s.decode(raw)
		return doc, s.name, err
	}

	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return review.ExtractedDocument{}, "", fmt.Errorf("encode ocr response: %w", err)
	}
	return review.ExtractedDocument{
		TextContent: unrecognizedPrefix + string(pretty),
	}, "fallback", nil
}
