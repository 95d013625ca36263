// Package mistral is the hosted OCR strategy of the extraction adapter.
package mistral

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

const (
	DefaultBaseURL = "https://api.mistral.ai/v1"
	DefaultModel   = "mistral-ocr-latest"
)

type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	IncludeImages bool
	Timeout       time.Duration
}

// Client calls the hosted OCR endpoint. With a Stager the document is sent
// by URL instead of inline as a data URL.
type Client struct {
	cfg    Config
	http   *http.Client
	stager review.DocumentStager
	logger *slog.Logger
}

func NewClient(cfg Config, stager review.DocumentStager, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		stager: stager,
		logger: logger,
	}
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrRequest struct {
	Model              string      `json:"model"`
	Document           ocrDocument `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

// Extract runs OCR over one PDF. Every failure comes back as *review.ExtractionError.
func (c *Client) Extract(ctx context.Context, f review.FileHandle) (review.ExtractedDocument, error) {
	fail := func(err error) (review.ExtractedDocument, error) {
		return review.ExtractedDocument{}, &review.ExtractionError{File: f.Name, Cause: err}
	}

	docURL, cleanup, err := c.documentURL(ctx, f)
	if err != nil {
		return fail(err)
	}
	if cleanup != nil {
		defer func() {
			cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := cleanup(cctx); err != nil {
				c.logger.Warn("ocr.stage.cleanup_failed", "file", f.Name, "error", err)
			}
		}()
	}

	payload, err := json.Marshal(ocrRequest{
		Model:              c.cfg.Model,
		Document:           ocrDocument{Type: "document_url", DocumentURL: docURL},
		IncludeImageBase64: c.cfg.IncludeImages,
	})
	if err != nil {
		return fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/ocr", bytes.NewReader(payload))
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("ocr.request.failed", "file", f.Name, "error", err)
		return fail(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("read ocr response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("ocr.request.rejected", "file", f.Name, "status", resp.StatusCode)
		return fail(&review.ProviderError{HTTPStatus: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)})
	}

	doc, shape, err := Normalize(body)
	if err != nil {
		return fail(err)
	}
	c.logger.Info("ocr.request.ok",
		"file", f.Name,
		"shape", shape,
		"pages", doc.PageCount,
		"ocr_len", len(doc.OCRContent),
		"text_len", len(doc.TextContent),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

func (c *Client) documentURL(ctx context.Context, f review.FileHandle) (string, func(context.Context) error, error) {
	if c.stager != nil {
		url, cleanup, err := c.stager.Stage(ctx, f)
		if err != nil {
			return "", nil, fmt.Errorf("stage document: %w", err)
		}
		return url, cleanup, nil
	}
	ct := f.ContentType
	if ct == "" {
		ct = "application/pdf"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(f.Data), nil, nil
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(status int, body []byte) string {
	var e struct {
		Message any `json:"message"`
		Detail  any `json:"detail"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		switch {
		case e.Error != nil && e.Error.Message != "":
			return e.Error.Message
		case e.Message != nil:
			return fmt.Sprint(e.Message)
		case e.Detail != nil:
			return fmt.Sprint(e.Detail)
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return truncate(s, 512)
	}
	return http.StatusText(status)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
