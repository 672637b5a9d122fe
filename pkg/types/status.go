package types

// ExtractionStatus records how text extraction ended for a file.
type ExtractionStatus string

const (
	StatusOK        ExtractionStatus = "ok"
	StatusPartial   ExtractionStatus = "partial"
	StatusEmpty     ExtractionStatus = "empty"
	StatusEncrypted ExtractionStatus = "encrypted"
	StatusFailed    ExtractionStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s ExtractionStatus) Valid() bool {
	switch s {
	case StatusOK, StatusPartial, StatusEmpty, StatusEncrypted, StatusFailed:
		return true
	}
	return false
}

// HasContent reports whether a file with this status carries extracted text.
func (s ExtractionStatus) HasContent() bool {
	return s == StatusOK || s == StatusPartial
}
