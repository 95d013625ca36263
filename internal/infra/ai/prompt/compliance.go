package prompt

import (
	"strings"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

// GetSystemPrompt returns the compliance rubric sent with every analysis.
func GetSystemPrompt() string {
	return `You are an expert FEMA compliance analyst specializing in Form APR (Annual Performance Report) reviews under India's Overseas Investment regulations (FEMA, 1999; OI Rules, 2022).

Your task is to:
1. Analyze the provided Form APR document thoroughly
2. Identify compliance issues, missing information, and inconsistencies
3. Check against FEMA regulations and RBI guidelines
4. Provide specific, actionable recommendations

Format your response as a detailed compliance report in markdown with:
- Executive Summary
- Section-by-section analysis with field names
- Compliance status for each critical field
- A "## Document Deficiency List" section: one "- " bullet per missing or defective document, nothing else under that heading
- Recommended actions before submission

Use these status indicators at the start of each field line:
- ✅ OK - Compliant and complete
- ⚠️ Requires Verification - Needs attention or clarification
- ❌ Incomplete/Non-compliant - Must fix before submission

Tables must use "|" separated columns with a "---" separator row under the header.

Be thorough, specific, and reference relevant FEMA rules where applicable. Focus on:
- UIN validation
- Capital structure accuracy
- Dividend/income reporting
- Supporting document requirements
- Regulatory compliance dates`
}

const (
	mainHeading       = "MAIN FORM APR DOCUMENT (OCR EXTRACTED):"
	directHeading     = "DIRECT TEXT CONTENT:"
	supportingHeading = "SUPPORTING DOCUMENTS:"
	userLead          = "Please analyze this Form APR document for FEMA compliance:\n\n"
)

// BuildContent menggabungkan hasil ekstraksi Form APR dan dokumen pendukung
// jadi satu payload. Empty optional sections are left out.
func BuildContent(primary review.ExtractedDocument, supporting string) string {
	var b strings.Builder
	b.WriteString(mainHeading)
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(primary.OCRContent))

	if text := strings.TrimSpace(primary.TextContent); text != "" {
		b.WriteString("\n\n")
		b.WriteString(directHeading)
		b.WriteString("\n")
		b.WriteString(text)
	}
	if supp := strings.TrimSpace(supporting); supp != "" {
		b.WriteString("\n\n")
		b.WriteString(supportingHeading)
		b.WriteString("\n")
		b.WriteString(supp)
	}
	return strings.TrimSpace(b.String())
}

// GetUserPrompt wraps the combined content in the user message.
func GetUserPrompt(content string) string {
	return userLead + content
}

// NewRequest builds the single analysis request of a run.
func NewRequest(primary review.ExtractedDocument, supporting string) review.AnalysisRequest {
	return review.AnalysisRequest{
		InstructionPrompt: GetSystemPrompt(),
		UserContent:       BuildContent(primary, supporting),
	}
}
