package review

import "fmt"

// UploadSet is the current file selection of a session.
type UploadSet struct {
	Primary    *FileHandle  `json:"primary,omitempty"`
	Supporting []FileHandle `json:"supporting"`
}

// SetPrimary replaces the primary file. Rejected files leave the set untouched.
func (u *UploadSet) SetPrimary(f *FileHandle) error {
	if f == nil {
		return &ValidationError{Field: "primary", Message: "Please select a Form APR PDF to upload."}
	}
	if f.Size > MaxPrimaryBytes {
		return &ValidationError{
			Field:    "primary",
			Message:  "File too large. Please upload a smaller PDF (max 10MB).",
			TooLarge: true,
		}
	}
	if f.Kind() != KindPDF {
		return &ValidationError{Field: "primary", Message: fmt.Sprintf("%s is not a PDF. Form APR must be uploaded as a PDF.", f.Name)}
	}
	cp := *f
	u.Primary = &cp
	return nil
}

// AddSupporting appends files in the given order. No de-duplication.
func (u *UploadSet) AddSupporting(files ...FileHandle) {
	u.Supporting = append(u.Supporting, files...)
}

// RemoveSupporting drops the file at index; out-of-range indexes are ignored.
func (u *UploadSet) RemoveSupporting(index int) {
	if index < 0 || index >= len(u.Supporting) {
		return
	}
	out := make([]FileHandle, 0, len(u.Supporting)-1)
	out = append(out, u.Supporting[:index]...)
	out = append(out, u.Supporting[index+1:]...)
	u.Supporting = out
}

// Clone returns a copy whose slices can be read without holding the session lock.
func (u UploadSet) Clone() UploadSet {
	out := UploadSet{Supporting: make([]FileHandle, len(u.Supporting))}
	copy(out.Supporting, u.Supporting)
	if u.Primary != nil {
		p := *u.Primary
		out.Primary = &p
	}
	return out
}
