// Command review runs one Form APR review from the command line and writes
// the report (and optionally its HTML rendition) into the -out directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bryanwahyu/apr-reconciler/internal/application"
	appreview "github.com/bryanwahyu/apr-reconciler/internal/application/review"
	"github.com/bryanwahyu/apr-reconciler/internal/config"
	"github.com/bryanwahyu/apr-reconciler/internal/domain/report"
	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/ai/prompt"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/clients"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/executor"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/extract/sheet"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/session"
	"github.com/bryanwahyu/apr-reconciler/internal/logger"
)

type fileList []string

func (f *fileList) String() string     { return strings.Join(*f, ",") }
func (f *fileList) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	var (
		primary    string
		supporting fileList
		outDir     string
		withHTML   bool
		quiet      bool
	)
	flag.StringVar(&primary, "primary", "", "Form APR PDF (required)")
	flag.Var(&supporting, "supporting", "supporting document, repeatable")
	flag.StringVar(&outDir, "out", ".", "directory for the report file")
	flag.BoolVar(&withHTML, "html", false, "also write an HTML rendition")
	flag.BoolVar(&quiet, "q", false, "do not print the report to stdout")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	// stdout is for the report; logs go to stderr
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: "text"}, os.Stderr)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, cfg, log, primary, supporting, outDir, withHTML, quiet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "review:", err)
	}
	os.Exit(code)
}

// loggedTarget echoes progress to the log; there is no websocket here.
type loggedTarget struct {
	*session.Session
	log *slog.Logger
}

func (t loggedTarget) SetProgress(state review.State, label string) {
	t.log.Info("review.progress", "state", state, "label", label)
	t.Session.SetProgress(state, label)
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, primary string, supporting []string, outDir string, withHTML, quiet bool) (int, error) {
	store, err := session.NewStore(1, log)
	if err != nil {
		return 2, err
	}
	sess := store.Create()

	if primary != "" {
		f, err := loadFile(primary)
		if err != nil {
			return 2, err
		}
		if err := sess.SetPrimary(&f); err != nil {
			return 2, err
		}
	}
	for _, p := range supporting {
		f, err := loadFile(p)
		if err != nil {
			return 2, err
		}
		if err := sess.AddSupporting(f); err != nil {
			return 2, err
		}
	}

	svc := &appreview.Service{
		// the CLI never stages: documents go inline
		Clients:      clients.Factory(cfg, nil, executor.NewRunner(log), log),
		Requests:     prompt.NewRequest,
		Credential:   cfg.Mistral.APIKey,
		Sheets:       sheet.NewReader(cfg.Extraction.PreviewRows, log),
		PrimaryLabel: clients.PrimaryLabel(cfg, appreview.LabelPrimaryOCR, appreview.LabelPrimaryLocal),
		Clock:        application.SystemClock{},
		Logger:       log,
	}
	if cfg.Mistral.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Mistral.RunTimeout)
		defer cancel()
	}

	res, err := svc.Run(ctx, loggedTarget{Session: sess, log: log})
	if err != nil {
		return 2, err
	}

	name := filepath.Join(outDir, report.DownloadName(svc.Clock.Now()))
	if err := os.WriteFile(name, []byte(report.ToPlainText(res.Text)), 0o644); err != nil {
		return 2, fmt.Errorf("write report: %w", err)
	}
	log.Info("review.report.written", "path", name, "failed", res.Failed())

	if withHTML {
		html, err := report.ToHTML(res.Text)
		if err != nil {
			return 2, err
		}
		htmlName := strings.TrimSuffix(name, filepath.Ext(name)) + ".html"
		if err := os.WriteFile(htmlName, html, 0o644); err != nil {
			return 2, fmt.Errorf("write html: %w", err)
		}
	}
	if !quiet {
		fmt.Println(res.Text)
	}
	if res.Failed() {
		return 1, nil
	}
	return 0, nil
}

func loadFile(path string) (review.FileHandle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return review.FileHandle{}, fmt.Errorf("read %s: %w", path, err)
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return review.FileHandle{
		Name:        filepath.Base(path),
		ContentType: ct,
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}
