package records

import (
	"fmt"
	"mime"
	"mime/multipart"
	"strings"

	"medilog-server/internal/errs"
)

// Admission is the upload gate. It runs against the multipart header before
// any byte is handed to the blob store, so rejected content is never stored.
type Admission struct {
	MaxBytes     int64
	AllowedTypes []string
}

// Check validates the uploaded file header. A nil header means no file field
// was present in the form at all.
func (a Admission) Check(fh *multipart.FileHeader) error {
	if fh == nil {
		return fmt.Errorf("%w: no file uploaded", errs.ErrValidation)
	}

	declared := fh.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return fmt.Errorf("%w: unreadable content type %q", errs.ErrValidation, declared)
	}
	if !a.typeAllowed(mediaType) {
		return fmt.Errorf("%w: file type %q is not allowed", errs.ErrValidation, mediaType)
	}

	if a.MaxBytes > 0 && fh.Size > a.MaxBytes {
		return fmt.Errorf("%w: file exceeds the %d byte limit", errs.ErrValidation, a.MaxBytes)
	}
	return nil
}

func (a Admission) typeAllowed(mediaType string) bool {
	for _, t := range a.AllowedTypes {
		if strings.EqualFold(t, mediaType) {
			return true
		}
	}
	return false
}
