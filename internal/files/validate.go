package files

import (
	"errors"
	"path/filepath"
	"strings"

	"sheetchart-web/internal/shared/util"
)

// MaxUploadSize is the largest file accepted for upload.
const MaxUploadSize = 10 << 20 // 10MB

var ErrInvalidUpload = errors.New("invalid upload")

// Rejection messages shown to the user.
const (
	MsgInvalidType = "Please select a valid Excel file (.xls, .xlsx, .csv)"
	MsgTooLarge    = "File size must be less than 10MB"
)

var allowedExtensions = map[string]bool{
	".csv":  true,
	".xls":  true,
	".xlsx": true,
}

var allowedMimeTypes = map[string]bool{
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/csv": true,
}

// UploadError is a validation failure caught before any request is sent.
type UploadError struct {
	Reason string
}

func (e *UploadError) Error() string        { return "invalid upload: " + e.Reason }
func (e *UploadError) Unwrap() error        { return ErrInvalidUpload }
func (e *UploadError) UserMessage() string { return e.Reason }

// ValidateUpload checks a selected file before dispatching an upload. The
// type check passes on either a spreadsheet extension or a spreadsheet MIME
// type. It returns the sanitized file name.
func ValidateUpload(name, mimeType string, size int64) (string, error) {
	clean, err := util.SanitizeFileName(filepath.Base(name))
	if err != nil {
		return "", &UploadError{Reason: MsgInvalidType}
	}
	ext := strings.ToLower(filepath.Ext(clean))
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if !allowedExtensions[ext] && !allowedMimeTypes[mediaType] {
		return "", &UploadError{Reason: MsgInvalidType}
	}
	if size > MaxUploadSize {
		return "", &UploadError{Reason: MsgTooLarge}
	}
	return clean, nil
}
