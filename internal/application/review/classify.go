package review

import (
	"errors"
	"net/http"
	"strings"

	domain "github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

// Classify picks the remediation class of a failed run. A structured
// provider status wins; otherwise the error text is matched.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrorGeneric
	}
	var ce *domain.ConfigurationError
	if errors.As(err, &ce) {
		return domain.ErrorConfiguration
	}

	var pe *domain.ProviderError
	if errors.As(err, &pe) && pe.HTTPStatus != 0 {
		switch pe.HTTPStatus {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.ErrorUnauthorized
		case http.StatusTooManyRequests:
			return domain.ErrorRateLimited
		case http.StatusRequestEntityTooLarge:
			return domain.ErrorTooLarge
		}
		return domain.ErrorGeneric
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "unauthorized"):
		return domain.ErrorUnauthorized
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"):
		return domain.ErrorRateLimited
	case strings.Contains(msg, "413"), strings.Contains(msg, "too large"):
		return domain.ErrorTooLarge
	}
	return domain.ErrorGeneric
}

const configurationReport = `# Configuration Error

**Missing API Key**

The Mistral API key is not configured. Please contact the administrator to set up the MISTRAL_API_KEY environment variable.

**For Administrators:**
- Add MISTRAL_API_KEY to the service environment or its .env file
- Restart the service after adding the key`

var remediation = map[domain.ErrorKind]string{
	domain.ErrorUnauthorized: `**Possible causes:**
- Invalid API key configuration
- API key doesn't have access to Mistral OCR
- API key has expired

**Solutions:**
- Contact administrator to verify API key configuration
- Check if the Mistral account has OCR access enabled
- Administrator may need to generate a new API key`,
	domain.ErrorRateLimited: `**Rate limit exceeded**
- Please wait a few minutes before trying again
- Contact administrator if this persists`,
	domain.ErrorTooLarge: `**Document too large**
- Try reducing the PDF file size
- Split large documents into smaller parts`,
	domain.ErrorGeneric: `**General troubleshooting:**
- Check your internet connection
- Ensure the PDF file is not corrupted
- Try with a smaller document first
- Contact support if the issue persists`,
}

// FailureReport renders the user-facing report of a failed run.
func FailureReport(ae *domain.AnalysisError) string {
	if ae.Kind == domain.ErrorConfiguration {
		return configurationReport
	}
	fix, ok := remediation[ae.Kind]
	if !ok {
		fix = remediation[domain.ErrorGeneric]
	}
	return "# Analysis Failed\n\n**Error:** " + ae.Message + "\n\n" + fix
}

// failure builds the terminal Result for err.
func failure(err error) domain.Result {
	ae := &domain.AnalysisError{Message: err.Error(), Kind: Classify(err)}
	return domain.Result{Text: FailureReport(ae), Err: ae}
}
