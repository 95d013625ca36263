package review

import "context"

// Extractor turns one file into an ExtractedDocument.
type Extractor interface {
	Extract(ctx context.Context, f FileHandle) (ExtractedDocument, error)
}

// Analyzer sends one analysis request to the model and returns its text.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (string, error)
}

// SheetReader renders a short text preview of a spreadsheet file.
type SheetReader interface {
	Preview(f FileHandle) (string, error)
}

// DocumentStager uploads a document somewhere the OCR provider can fetch it.
type DocumentStager interface {
	Stage(ctx context.Context, f FileHandle) (url string, cleanup func(context.Context) error, err error)
}

// Clients are the per-run collaborators built from the credential.
type Clients struct {
	Extractor Extractor
	Analyzer  Analyzer
}

// ClientFactory builds fresh clients for one run.
type ClientFactory func(credential string) (Clients, error)

// RunTarget is the per-session state an orchestration run drives.
type RunTarget interface {
	// BeginRun checks the entry guards and, when they pass, moves the target
	// into its first working state and returns a snapshot of the uploads.
	BeginRun() (UploadSet, error)
	SetProgress(state State, label string)
	Finish(res Result)
}

// RequestBuilder pairs the rubric with the assembled content of a run.
type RequestBuilder func(primary ExtractedDocument, supporting string) AnalysisRequest
