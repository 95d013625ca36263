// Package review orchestrates one Form APR review run: extraction of the
// primary and supporting documents, then a single analysis request.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/apr-reconciler/internal/application"
	domain "github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

// Progress labels shown while a run is in flight.
const (
	LabelPrimaryOCR   = "Processing Form APR with Mistral OCR..."
	LabelPrimaryLocal = "Extracting Form APR text layer..."
	LabelSupporting   = "Processing supporting documents..."
	LabelAnalyzing    = "Analyzing document for FEMA compliance..."
)

// Observer receives run lifecycle events (metrics).
type Observer interface {
	RunStarted()
	RunFinished(kind domain.ErrorKind, failed bool, d time.Duration)
}

// Service implements the analysis use-case. Safe for concurrent use; each
// run builds its own clients from Clients(Credential).
type Service struct {
	Clients      domain.ClientFactory
	Requests     domain.RequestBuilder
	Credential   string
	Sheets       domain.SheetReader // optional
	PrimaryLabel string             // default LabelPrimaryOCR
	Timeout      time.Duration      // 0 = no deadline for background runs
	Clock        application.Clock
	Logger       *slog.Logger
	Observer     Observer // optional
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

// begin checks the entry guards in order: run in flight, missing primary,
// missing credential. The last one finishes the target with the
// configuration report; ok is false and err nil in that case.
func (s *Service) begin(t domain.RunTarget) (uploads domain.UploadSet, ok bool, err error) {
	uploads, err = t.BeginRun()
	if err != nil {
		return domain.UploadSet{}, false, err
	}
	if strings.TrimSpace(s.Credential) == "" {
		res := failure(&domain.ConfigurationError{Setting: "MISTRAL_API_KEY"})
		t.Finish(res)
		s.logger().Warn("review.run.unconfigured", "setting", "MISTRAL_API_KEY")
		if s.Observer != nil {
			s.Observer.RunStarted()
			s.Observer.RunFinished(domain.ErrorConfiguration, true, 0)
		}
		return domain.UploadSet{}, false, nil
	}
	return uploads, true, nil
}

// Start runs the guards synchronously, then the run itself in the
// background with its own context so the caller's request can end.
func (s *Service) Start(t domain.RunTarget) error {
	uploads, ok, err := s.begin(t)
	if err != nil || !ok {
		return err
	}
	go func() {
		ctx := context.Background()
		if s.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.Timeout)
			defer cancel()
		}
		s.execute(ctx, t, uploads)
	}()
	return nil
}

// Run is the synchronous variant used by the CLI.
func (s *Service) Run(ctx context.Context, t domain.RunTarget) (domain.Result, error) {
	uploads, ok, err := s.begin(t)
	if err != nil {
		return domain.Result{}, err
	}
	if !ok {
		return failure(&domain.ConfigurationError{Setting: "MISTRAL_API_KEY"}), nil
	}
	return s.execute(ctx, t, uploads), nil
}

// execute always finishes t with some report, panics included.
func (s *Service) execute(ctx context.Context, t domain.RunTarget, uploads domain.UploadSet) (res domain.Result) {
	runID := uuid.NewString()
	log := s.logger().With("run_id", runID)
	start := s.now()
	if s.Observer != nil {
		s.Observer.RunStarted()
	}
	log.Info("review.run.start", "primary", uploads.Primary.Name, "supporting", len(uploads.Supporting))

	defer func() {
		if r := recover(); r != nil {
			log.Error("review.run.panic", "panic", r)
			res = failure(fmt.Errorf("unexpected failure: %v", r))
		}
		d := s.now().Sub(start)
		if res.Failed() {
			log.Error("review.run.failed", "kind", res.Err.Kind, "error", res.Err.Message, "duration_ms", d.Milliseconds())
		} else {
			log.Info("review.run.done", "report_len", len(res.Text), "duration_ms", d.Milliseconds())
		}
		if s.Observer != nil {
			var kind domain.ErrorKind
			if res.Failed() {
				kind = res.Err.Kind
			}
			s.Observer.RunFinished(kind, res.Failed(), d)
		}
		t.Finish(res)
	}()

	clients, err := s.Clients(s.Credential)
	if err != nil {
		return failure(err)
	}

	label := s.PrimaryLabel
	if label == "" {
		label = LabelPrimaryOCR
	}
	t.SetProgress(domain.StateExtractingPrimary, label)
	primary, err := clients.Extractor.Extract(ctx, *uploads.Primary)
	if err != nil {
		return failure(err)
	}
	log.Info("review.primary.extracted",
		"pages", primary.PageCount,
		"ocr_len", len(primary.OCRContent),
		"text_len", len(primary.TextContent),
	)

	var supporting string
	if len(uploads.Supporting) > 0 {
		t.SetProgress(domain.StateExtractingSupporting, LabelSupporting)
		supporting = s.ProcessSupporting(ctx, clients.Extractor, uploads.Supporting)
	}

	t.SetProgress(domain.StateAnalyzing, LabelAnalyzing)
	text, err := clients.Analyzer.Analyze(ctx, s.Requests(primary, supporting))
	if err != nil {
		return failure(err)
	}
	return domain.Result{Text: text}
}

const (
	spreadsheetNote = "[Spreadsheet file - please ensure data matches Form APR entries]"
	unsupportedNote = "[File type not supported for OCR processing]"
)

// ProcessSupporting extracts each file in order into one combined string.
// A failing file is noted inline and the batch continues.
func (s *Service) ProcessSupporting(ctx context.Context, ex domain.Extractor, files []domain.FileHandle) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString("\n\n=== " + f.Name + " ===\n")
		switch f.Kind() {
		case domain.KindPDF:
			doc, err := ex.Extract(ctx, f)
			if err != nil {
				s.logger().Warn("review.supporting.failed", "file", f.Name, "error", err)
				b.WriteString("[Error processing file: " + err.Error() + "]")
				continue
			}
			b.WriteString(doc.Content())
		case domain.KindSpreadsheet:
			b.WriteString(spreadsheetNote)
			if s.Sheets == nil {
				continue
			}
			preview, err := s.Sheets.Preview(f)
			if err != nil {
				s.logger().Debug("review.supporting.no_preview", "file", f.Name, "error", err)
				continue
			}
			if preview != "" {
				b.WriteString("\n" + preview)
			}
		default:
			b.WriteString(unsupportedNote)
		}
	}
	return b.String()
}
