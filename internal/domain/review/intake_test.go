package review

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pdf(name string, size int64) *FileHandle {
	return &FileHandle{Name: name, ContentType: "application/pdf", Size: size}
}

func TestSetPrimaryAcceptsPDFAtCeiling(t *testing.T) {
	var u UploadSet
	require.NoError(t, u.SetPrimary(pdf("apr.pdf", MaxPrimaryBytes)))
	require.NotNil(t, u.Primary)
	assert.Equal(t, "apr.pdf", u.Primary.Name)
}

func TestSetPrimaryRejectsOversizeAndKeepsPrevious(t *testing.T) {
	var u UploadSet
	require.NoError(t, u.SetPrimary(pdf("first.pdf", 1024)))

	err := u.SetPrimary(pdf("big.pdf", 10_000_001))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.TooLarge)
	assert.Contains(t, verr.Message, "max 10MB")
	assert.Equal(t, "first.pdf", u.Primary.Name)
}

func TestSetPrimaryRejectsMissingAndNonPDF(t *testing.T) {
	var u UploadSet
	require.Error(t, u.SetPrimary(nil))
	require.Error(t, u.SetPrimary(&FileHandle{Name: "data.csv", ContentType: "text/csv", Size: 10}))
	assert.Nil(t, u.Primary)
}

func TestSetPrimaryCopiesHandle(t *testing.T) {
	var u UploadSet
	f := pdf("apr.pdf", 3)
	require.NoError(t, u.SetPrimary(f))
	f.Name = "changed.pdf"
	assert.Equal(t, "apr.pdf", u.Primary.Name)
}

func TestSupportingAppendAndRemove(t *testing.T) {
	var u UploadSet
	u.AddSupporting(FileHandle{Name: "a.pdf"}, FileHandle{Name: "b.csv"})
	u.AddSupporting(FileHandle{Name: "a.pdf"})
	require.Len(t, u.Supporting, 3)

	u.RemoveSupporting(1)
	assert.Equal(t, []string{"a.pdf", "a.pdf"}, names(u.Supporting))

	u.RemoveSupporting(7)
	u.RemoveSupporting(-1)
	assert.Len(t, u.Supporting, 2)
}

func TestFileKind(t *testing.T) {
	cases := map[string]struct {
		f    FileHandle
		want FileKind
	}{
		"pdf by type":     {FileHandle{Name: "x", ContentType: "application/pdf"}, KindPDF},
		"pdf by ext":      {FileHandle{Name: "X.PDF"}, KindPDF},
		"xlsx":            {FileHandle{Name: "ledger.xlsx"}, KindSpreadsheet},
		"xls":             {FileHandle{Name: "ledger.xls"}, KindSpreadsheet},
		"csv by type":     {FileHandle{Name: "rows", ContentType: "text/csv"}, KindSpreadsheet},
		"sheet mime":      {FileHandle{Name: "s", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}, KindSpreadsheet},
		"word is unknown": {FileHandle{Name: "memo.docx"}, KindUnsupported},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.f.Kind())
		})
	}
}

func TestStateWorking(t *testing.T) {
	assert.False(t, StateIdle.Working())
	assert.True(t, StateExtractingPrimary.Working())
	assert.True(t, StateExtractingSupporting.Working())
	assert.True(t, StateAnalyzing.Working())
	assert.False(t, StateDone.Working())
	assert.False(t, StateFailed.Working())
}

func names(files []FileHandle) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func TestExtractedDocumentContentJoinsBoth(t *testing.T) {
	assert.Equal(t, "scan\n\ntyped", ExtractedDocument{OCRContent: " scan\n", TextContent: "typed\n"}.Content())
	assert.Equal(t, "typed", ExtractedDocument{OCRContent: "  ", TextContent: "typed"}.Content())
	assert.Equal(t, "scan", ExtractedDocument{OCRContent: "scan"}.Content())
	assert.Empty(t, ExtractedDocument{}.Content())
}
