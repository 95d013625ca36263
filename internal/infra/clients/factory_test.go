package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/apr-reconciler/internal/config"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/ai/mistral"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/ai/openai"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/extract/local"
)

func TestFactory_Strategy(t *testing.T) {
	cfg := &config.Config{}
	cfg.Extraction.Strategy = config.StrategyHosted

	c, err := Factory(cfg, nil, nil, nil)("key")
	require.NoError(t, err)
	assert.IsType(t, &mistral.Client{}, c.Extractor)
	assert.IsType(t, &openai.Client{}, c.Analyzer)

	cfg.Extraction.Strategy = config.StrategyLocal
	c, err = Factory(cfg, nil, nil, nil)("key")
	require.NoError(t, err)
	assert.IsType(t, &local.Extractor{}, c.Extractor)
}

func TestBinaries(t *testing.T) {
	cfg := &config.Config{}
	cfg.Extraction.Strategy = config.StrategyHosted
	assert.Empty(t, Binaries(cfg))

	cfg.Extraction.Strategy = config.StrategyLocal
	cfg.Extraction.OCRFallback = true
	cfg.Extraction.Tesseract = "/opt/tesseract"
	assert.Equal(t, []string{"pdfinfo", "pdftotext", "pdftoppm", "/opt/tesseract"}, Binaries(cfg))
}

func TestPrimaryLabel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Extraction.Strategy = config.StrategyLocal
	assert.Equal(t, "l", PrimaryLabel(cfg, "o", "l"))
}
