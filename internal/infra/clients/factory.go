// Package clients builds the per-run extraction and analysis clients from config.
package clients

import (
	"log/slog"

	"github.com/bryanwahyu/apr-reconciler/internal/config"
	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/ai/mistral"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/ai/openai"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/executor"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/extract/local"
)

// Factory returns a review.ClientFactory for cfg. stager may be nil
// (inline data URLs); runner is only used by the local strategy.
func Factory(cfg *config.Config, stager review.DocumentStager, runner executor.Runner, logger *slog.Logger) review.ClientFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(credential string) (review.Clients, error) {
		analyzer := openai.NewClient(openai.Config{
			APIKey:      credential,
			BaseURL:     cfg.Mistral.ChatBaseURL,
			Model:       cfg.Mistral.ChatModel,
			Temperature: cfg.Mistral.Temperature,
			MaxTokens:   cfg.Mistral.MaxTokens,
			Timeout:     cfg.Mistral.Timeout,
		}, logger)

		var extractor review.Extractor
		if cfg.Extraction.Strategy == config.StrategyLocal {
			extractor = local.NewExtractor(local.Config{
				Pdfinfo:       cfg.Extraction.Pdfinfo,
				Pdftotext:     cfg.Extraction.Pdftotext,
				Pdftoppm:      cfg.Extraction.Pdftoppm,
				Tesseract:     cfg.Extraction.Tesseract,
				TesseractLang: cfg.Extraction.TesseractLang,
				DPI:           cfg.Extraction.DPI,
				MaxPages:      cfg.Extraction.MaxPages,
				Rasterize:     cfg.Extraction.Rasterize,
				OCRFallback:   cfg.Extraction.OCRFallback,
			}, runner, logger)
		} else {
			extractor = mistral.NewClient(mistral.Config{
				APIKey:        credential,
				BaseURL:       cfg.Mistral.BaseURL,
				Model:         cfg.Mistral.OCRModel,
				IncludeImages: cfg.Mistral.IncludeImages,
				Timeout:       cfg.Mistral.Timeout,
			}, stager, logger)
		}
		return review.Clients{Extractor: extractor, Analyzer: analyzer}, nil
	}
}

// PrimaryLabel is the progress label of the primary extraction step.
func PrimaryLabel(cfg *config.Config, ocr, local string) string {
	if cfg.Extraction.Strategy == config.StrategyLocal {
		return local
	}
	return ocr
}

// Binaries lists the external tools the configured strategy needs.
func Binaries(cfg *config.Config) []string {
	if cfg.Extraction.Strategy != config.StrategyLocal {
		return nil
	}
	bins := []string{
		orDefault(cfg.Extraction.Pdfinfo, "pdfinfo"),
		orDefault(cfg.Extraction.Pdftotext, "pdftotext"),
	}
	if cfg.Extraction.Rasterize || cfg.Extraction.OCRFallback {
		bins = append(bins, orDefault(cfg.Extraction.Pdftoppm, "pdftoppm"))
	}
	if cfg.Extraction.OCRFallback {
		bins = append(bins, orDefault(cfg.Extraction.Tesseract, "tesseract"))
	}
	return bins
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
