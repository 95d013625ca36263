package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

type fakeTarget struct {
	mu       sync.Mutex
	uploads  domain.UploadSet
	state    domain.State
	labels   []string
	result   *domain.Result
	finished chan struct{}
}

func newTarget(supporting ...domain.FileHandle) *fakeTarget {
	t := &fakeTarget{state: domain.StateIdle, finished: make(chan struct{}, 1)}
	_ = t.uploads.SetPrimary(&domain.FileHandle{Name: "apr.pdf", ContentType: "application/pdf", Size: 4, Data: []byte("%PDF")})
	t.uploads.AddSupporting(supporting...)
	return t
}

func (t *fakeTarget) BeginRun() (domain.UploadSet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Working() {
		return domain.UploadSet{}, domain.ErrAnalysisInProgress
	}
	if t.uploads.Primary == nil {
		return domain.UploadSet{}, domain.ErrPrimaryMissing
	}
	t.state = domain.StateExtractingPrimary
	return t.uploads.Clone(), nil
}

func (t *fakeTarget) SetProgress(s domain.State, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
	t.labels = append(t.labels, label)
}

func (t *fakeTarget) Finish(res domain.Result) {
	t.mu.Lock()
	t.result = &res
	if res.Failed() {
		t.state = domain.StateFailed
	} else {
		t.state = domain.StateDone
	}
	t.mu.Unlock()
	t.finished <- struct{}{}
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	block chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, fh domain.FileHandle) (domain.ExtractedDocument, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fh.Name)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if err := f.fail[fh.Name]; err != nil {
		return domain.ExtractedDocument{}, &domain.ExtractionError{File: fh.Name, Cause: err}
	}
	return domain.ExtractedDocument{OCRContent: "ocr of " + fh.Name, PageCount: 1}, nil
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	reqs  []domain.AnalysisRequest
	reply string
	err   error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

type fakeSheets struct{}

func (fakeSheets) Preview(f domain.FileHandle) (string, error) { return "UIN | AB123", nil }

func joinRequest(primary domain.ExtractedDocument, supporting string) domain.AnalysisRequest {
	return domain.AnalysisRequest{InstructionPrompt: "rubric", UserContent: primary.OCRContent + "|" + supporting}
}

func newService(ex *fakeExtractor, an *fakeAnalyzer) (*Service, *int) {
	built := 0
	return &Service{
		Clients: func(credential string) (domain.Clients, error) {
			built++
			return domain.Clients{Extractor: ex, Analyzer: an}, nil
		},
		Requests:   joinRequest,
		Credential: "key",
	}, &built
}

func TestRun_Success(t *testing.T) {
	ex := &fakeExtractor{}
	an := &fakeAnalyzer{reply: "# Report\n✅ OK"}
	svc, built := newService(ex, an)
	target := newTarget()

	res, err := svc.Run(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Equal(t, "# Report\n✅ OK", res.Text)
	assert.Equal(t, domain.StateDone, target.state)
	assert.Equal(t, []string{LabelPrimaryOCR, LabelAnalyzing}, target.labels)
	assert.Equal(t, 1, *built)
	require.Len(t, an.reqs, 1)
	assert.Equal(t, "ocr of apr.pdf|", an.reqs[0].UserContent)
}

func TestRun_MissingCredentialMakesNoCalls(t *testing.T) {
	ex := &fakeExtractor{}
	an := &fakeAnalyzer{}
	svc, built := newService(ex, an)
	svc.Credential = " "
	target := newTarget()

	res, err := svc.Run(context.Background(), target)
	require.NoError(t, err)
	require.True(t, res.Failed())
	assert.Equal(t, domain.ErrorConfiguration, res.Err.Kind)
	assert.Contains(t, res.Text, "# Configuration Error")
	assert.Equal(t, domain.StateFailed, target.state)
	assert.Contains(t, target.result.Text, "MISTRAL_API_KEY")
	assert.Zero(t, *built)
	assert.Empty(t, ex.calls)
	assert.Empty(t, an.reqs)
}

func TestRun_MissingPrimary(t *testing.T) {
	svc, _ := newService(&fakeExtractor{}, &fakeAnalyzer{})
	target := &fakeTarget{state: domain.StateIdle, finished: make(chan struct{}, 1)}

	_, err := svc.Run(context.Background(), target)
	assert.ErrorIs(t, err, domain.ErrPrimaryMissing)
	assert.Nil(t, target.result)
}

func TestStart_ReentrancyIssuesNoSecondRequest(t *testing.T) {
	ex := &fakeExtractor{block: make(chan struct{})}
	an := &fakeAnalyzer{reply: "done"}
	svc, built := newService(ex, an)
	target := newTarget()

	require.NoError(t, svc.Start(target))
	assert.ErrorIs(t, svc.Start(target), domain.ErrAnalysisInProgress)
	assert.ErrorIs(t, svc.Start(target), domain.ErrAnalysisInProgress)

	close(ex.block)
	select {
	case <-target.finished:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Equal(t, 1, *built)
	assert.Len(t, an.reqs, 1)
	assert.Equal(t, []string{"apr.pdf"}, ex.calls)
}

func TestRun_ProviderErrorClassified(t *testing.T) {
	tests := []struct {
		err  error
		kind domain.ErrorKind
		copy string
	}{
		{&domain.ProviderError{HTTPStatus: 401, Message: "Unauthorized"}, domain.ErrorUnauthorized, "Invalid API key configuration"},
		{&domain.ProviderError{HTTPStatus: 429, Message: "slow down"}, domain.ErrorRateLimited, "**Rate limit exceeded**"},
		{&domain.ProviderError{HTTPStatus: 413, Message: "big"}, domain.ErrorTooLarge, "**Document too large**"},
		{errors.New("connection reset"), domain.ErrorGeneric, "**General troubleshooting:**"},
	}
	for _, tt := range tests {
		an := &fakeAnalyzer{err: tt.err}
		svc, _ := newService(&fakeExtractor{}, an)

		res, err := svc.Run(context.Background(), newTarget())
		require.NoError(t, err)
		require.True(t, res.Failed())
		assert.Equal(t, tt.kind, res.Err.Kind)
		assert.True(t, strings.HasPrefix(res.Text, "# Analysis Failed\n\n**Error:** "+tt.err.Error()+"\n\n"))
		assert.Contains(t, res.Text, tt.copy)
		assert.Len(t, an.reqs, 1, "no retries")
	}
}

func TestRun_PrimaryExtractionFailure(t *testing.T) {
	ex := &fakeExtractor{fail: map[string]error{"apr.pdf": errors.New("pdf has no pages")}}
	an := &fakeAnalyzer{}
	svc, _ := newService(ex, an)
	target := newTarget()

	res, err := svc.Run(context.Background(), target)
	require.NoError(t, err)
	require.True(t, res.Failed())
	assert.Contains(t, res.Err.Message, "pdf has no pages")
	assert.Empty(t, an.reqs)
	assert.Equal(t, domain.StateFailed, target.state)
}

func TestRun_PanicBecomesReport(t *testing.T) {
	svc := &Service{
		Clients:    func(string) (domain.Clients, error) { panic("boom") },
		Requests:   joinRequest,
		Credential: "key",
	}
	target := newTarget()

	res, err := svc.Run(context.Background(), target)
	require.NoError(t, err)
	require.True(t, res.Failed())
	assert.Contains(t, res.Text, "boom")
	assert.Equal(t, domain.StateFailed, target.state)
}

func TestProcessSupporting_OrderAndErrors(t *testing.T) {
	ex := &fakeExtractor{fail: map[string]error{"A.pdf": errors.New("corrupt")}}
	svc, _ := newService(ex, &fakeAnalyzer{})

	out := svc.ProcessSupporting(context.Background(), ex, []domain.FileHandle{
		{Name: "A.pdf", ContentType: "application/pdf"},
		{Name: "B.csv", ContentType: "text/csv"},
		{Name: "C.pdf", ContentType: "application/pdf"},
		{Name: "notes.docx"},
	})

	a := strings.Index(out, "=== A.pdf ===")
	b := strings.Index(out, "=== B.csv ===")
	c := strings.Index(out, "=== C.pdf ===")
	d := strings.Index(out, "=== notes.docx ===")
	require.True(t, a >= 0 && a < b && b < c && c < d, out)

	assert.True(t, strings.HasPrefix(out, "\n\n=== A.pdf ===\n[Error processing file: "))
	assert.Contains(t, out, "corrupt]")
	assert.Contains(t, out, "=== B.csv ===\n[Spreadsheet file - please ensure data matches Form APR entries]")
	assert.Contains(t, out, "=== C.pdf ===\nocr of C.pdf")
	assert.Contains(t, out, "=== notes.docx ===\n[File type not supported for OCR processing]")
}

type mixedExtractor struct{}

func (mixedExtractor) Extract(ctx context.Context, fh domain.FileHandle) (domain.ExtractedDocument, error) {
	return domain.ExtractedDocument{
		TextContent: "--- Page 1 ---\nLedger total 12,500",
		OCRContent:  "--- Page 2 ---\nSigned by auditor",
		PageCount:   2,
	}, nil
}

func TestProcessSupporting_KeepsTextLayerAndOCR(t *testing.T) {
	svc, _ := newService(&fakeExtractor{}, &fakeAnalyzer{})

	out := svc.ProcessSupporting(context.Background(), mixedExtractor{}, []domain.FileHandle{{Name: "audit.pdf"}})
	assert.Equal(t, "\n\n=== audit.pdf ===\n--- Page 2 ---\nSigned by auditor\n\n--- Page 1 ---\nLedger total 12,500", out)
	assert.Contains(t, out, "Ledger total 12,500")
}

func TestProcessSupporting_SheetPreview(t *testing.T) {
	svc, _ := newService(&fakeExtractor{}, &fakeAnalyzer{})
	svc.Sheets = fakeSheets{}

	out := svc.ProcessSupporting(context.Background(), &fakeExtractor{}, []domain.FileHandle{{Name: "cap.xlsx"}})
	assert.Equal(t, "\n\n=== cap.xlsx ===\n[Spreadsheet file - please ensure data matches Form APR entries]\nUIN | AB123", out)
}

func TestRun_SupportingLabel(t *testing.T) {
	ex := &fakeExtractor{}
	an := &fakeAnalyzer{reply: "ok"}
	svc, _ := newService(ex, an)
	svc.PrimaryLabel = LabelPrimaryLocal

	_, err := svc.Run(context.Background(), newTarget(domain.FileHandle{Name: "s.pdf", ContentType: "application/pdf"}))
	require.NoError(t, err)
	require.Len(t, an.reqs, 1)
	assert.Equal(t, "ocr of apr.pdf|\n\n=== s.pdf ===\nocr of s.pdf", an.reqs[0].UserContent)
	assert.Equal(t, []string{"apr.pdf", "s.pdf"}, ex.calls)
}
