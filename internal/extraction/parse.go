package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// rawFields mirrors the service response with pointer fields so missing
// keys can be told apart from zero values.
type rawFields struct {
	Merchant *string  `json:"merchant"`
	Total    *float64 `json:"total"`
	Date     *string  `json:"date"`
	Category *string  `json:"category"`
	Summary  *string  `json:"summary"`
}

// parseFields validates a service response against the output schema
// and produces fully-typed fields. Nothing unvalidated passes this
// boundary: a missing required field, an unknown category, or an
// unparseable date is an extraction failure, not a partial result.
func parseFields(text string) (*Fields, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Some models wrap the JSON in prose despite instructions.
	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrExtractionFailed)
	}
	text = text[startIdx : endIdx+1]

	var raw rawFields
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling response: %v", ErrExtractionFailed, err)
	}

	if raw.Merchant == nil || strings.TrimSpace(*raw.Merchant) == "" {
		return nil, fmt.Errorf("%w: response missing merchant", ErrExtractionFailed)
	}
	if raw.Total == nil {
		return nil, fmt.Errorf("%w: response missing total", ErrExtractionFailed)
	}
	if raw.Date == nil || *raw.Date == "" {
		return nil, fmt.Errorf("%w: response missing date", ErrExtractionFailed)
	}
	if raw.Category == nil {
		return nil, fmt.Errorf("%w: response missing category", ErrExtractionFailed)
	}

	category := strings.TrimSpace(*raw.Category)
	if !validCategory(category) {
		return nil, fmt.Errorf("%w: category %q not in schema", ErrExtractionFailed, category)
	}

	date, err := normalizeDate(*raw.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	fields := &Fields{
		Merchant: strings.TrimSpace(*raw.Merchant),
		Total:    *raw.Total,
		Date:     date,
		Category: category,
	}
	// Summary is the one optional field; absent means empty.
	if raw.Summary != nil {
		fields.Summary = strings.TrimSpace(*raw.Summary)
	}
	return fields, nil
}

// normalizeDate coerces common date formats to YYYY-MM-DD.
func normalizeDate(s string) (string, error) {
	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unparseable date %q", s)
}

func validCategory(s string) bool {
	for _, c := range categoryEnum {
		if s == c {
			return true
		}
	}
	return false
}
