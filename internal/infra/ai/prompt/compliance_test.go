package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

func TestBuildContent_AllSections(t *testing.T) {
	doc := review.ExtractedDocument{OCRContent: "--- Page 1 ---\nUIN 123", TextContent: "raw text"}
	got := BuildContent(doc, "\n\n=== a.csv ===\nrow")

	assert.True(t, strings.HasPrefix(got, "MAIN FORM APR DOCUMENT (OCR EXTRACTED):\n--- Page 1 ---\nUIN 123"))
	assert.Contains(t, got, "\n\nDIRECT TEXT CONTENT:\nraw text")
	assert.Contains(t, got, "\n\nSUPPORTING DOCUMENTS:\n=== a.csv ===\nrow")
	assert.Less(t, strings.Index(got, "DIRECT TEXT"), strings.Index(got, "SUPPORTING"))
}

func TestBuildContent_OmitsEmptySections(t *testing.T) {
	got := BuildContent(review.ExtractedDocument{OCRContent: "ocr"}, "  ")
	assert.Equal(t, "MAIN FORM APR DOCUMENT (OCR EXTRACTED):\nocr", got)
}

func TestNewRequest(t *testing.T) {
	req := NewRequest(review.ExtractedDocument{OCRContent: "x"}, "")
	assert.Equal(t, GetSystemPrompt(), req.InstructionPrompt)
	assert.Contains(t, req.InstructionPrompt, "✅")
	assert.Contains(t, req.InstructionPrompt, "Document Deficiency List")
	assert.Equal(t, "Please analyze this Form APR document for FEMA compliance:\n\nMAIN FORM APR DOCUMENT (OCR EXTRACTED):\nx",
		GetUserPrompt(req.UserContent))
}
