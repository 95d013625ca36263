package review

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

func TestClassify(t *testing.T) {
	wrapped := &domain.ExtractionError{File: "apr.pdf", Cause: &domain.ProviderError{HTTPStatus: 403, Message: "forbidden"}}

	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"configuration", &domain.ConfigurationError{Setting: "MISTRAL_API_KEY"}, domain.ErrorConfiguration},
		{"status wins over text", &domain.ProviderError{HTTPStatus: 500, Message: "payload too large"}, domain.ErrorGeneric},
		{"wrapped provider status", wrapped, domain.ErrorUnauthorized},
		{"text 401", errors.New("request failed with 401"), domain.ErrorUnauthorized},
		{"text unauthorized", errors.New("Unauthorized"), domain.ErrorUnauthorized},
		{"text rate limit", fmt.Errorf("ocr: %w", errors.New("rate limit hit")), domain.ErrorRateLimited},
		{"text too large", errors.New("body too large"), domain.ErrorTooLarge},
		{"status-less provider", &domain.ProviderError{Message: "dial tcp: 429 things"}, domain.ErrorRateLimited},
		{"generic", errors.New("eof"), domain.ErrorGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFailureReport(t *testing.T) {
	got := FailureReport(&domain.AnalysisError{Message: "status 429: slow", Kind: domain.ErrorRateLimited})
	assert.Equal(t, "# Analysis Failed\n\n**Error:** status 429: slow\n\n**Rate limit exceeded**\n- Please wait a few minutes before trying again\n- Contact administrator if this persists", got)

	cfg := FailureReport(&domain.AnalysisError{Kind: domain.ErrorConfiguration})
	assert.Contains(t, cfg, "**Missing API Key**")
}
