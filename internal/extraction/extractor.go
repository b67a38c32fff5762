package extraction

import "errors"

// Fields contains the structured values an extraction backend read off
// a receipt image. Total is in dollars as reported by the service.
type Fields struct {
	Merchant string  `json:"merchant"`
	Total    float64 `json:"total"`
	Date     string  `json:"date"` // YYYY-MM-DD
	Category string  `json:"category"`
	Summary  string  `json:"summary"`
}

var (
	// ErrMissingCredential means no service credential is configured.
	// The call is refused without any network I/O.
	ErrMissingCredential = errors.New("extraction credential missing")

	// ErrExtractionFailed covers every other failure mode: network or
	// service errors, non-JSON responses, and schema mismatches.
	ErrExtractionFailed = errors.New("extraction failed")
)

// Extractor sends one receipt image to an AI vision service and returns
// the structured fields it read. Exactly one call is made per capture;
// there is no retry and no partial-result recovery.
type Extractor interface {
	// Extract analyzes a receipt image and returns its fields.
	Extract(imageData []byte, mimeType string) (*Fields, error)
	// Close releases backend resources.
	Close() error
}

// Unconfigured is an Extractor wired when no credential is present.
// Every call fails with ErrMissingCredential so the capture flow can
// degrade to manual entry.
type Unconfigured struct{}

func (Unconfigured) Extract(imageData []byte, mimeType string) (*Fields, error) {
	return nil, ErrMissingCredential
}

func (Unconfigured) Close() error { return nil }
