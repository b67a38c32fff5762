package expense

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/snapspend/snapspend/internal/extraction"
)

// Category is the closed set of expense categories.
type Category string

const (
	CategoryFood          Category = "Food & Dining"
	CategoryGroceries     Category = "Groceries"
	CategoryTransport     Category = "Transportation"
	CategoryUtilities     Category = "Utilities"
	CategoryShopping      Category = "Shopping"
	CategoryHealth        Category = "Health"
	CategoryEntertainment Category = "Entertainment"
	CategoryOther         Category = "Other"
)

// Categories returns every valid category in display order.
func Categories() []Category {
	return []Category{
		CategoryFood,
		CategoryGroceries,
		CategoryTransport,
		CategoryUtilities,
		CategoryShopping,
		CategoryHealth,
		CategoryEntertainment,
		CategoryOther,
	}
}

// IsValid reports whether c is one of the closed category set.
func (c Category) IsValid() bool {
	for _, v := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

// ParseCategory maps a string onto the closed category set, falling
// back to Other for anything unrecognized.
func ParseCategory(s string) Category {
	c := Category(strings.TrimSpace(s))
	if c.IsValid() {
		return c
	}
	return CategoryOther
}

// Record is the persisted expense unit.
type Record struct {
	ID          string   `json:"id"`
	Merchant    string   `json:"merchant"`
	TotalCents  int64    `json:"total_cents"` // Amount in cents
	Date        string   `json:"date"`        // YYYY-MM-DD
	Category    Category `json:"category"`
	Summary     string   `json:"summary,omitempty"`
	ImageData   []byte   `json:"image_data,omitempty"` // Inline image payload, display only
	ContentType string   `json:"content_type,omitempty"`
	CreatedAt   int64    `json:"created_at"` // Epoch milliseconds, set once at capture
}

// Validate checks the required-field constraints a record must satisfy
// before it can be committed to the store.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Merchant) == "" {
		return fmt.Errorf("merchant is required")
	}
	if r.TotalCents < 0 {
		return fmt.Errorf("total must not be negative")
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %q", r.Date)
	}
	if !r.Category.IsValid() {
		return fmt.Errorf("unknown category: %q", r.Category)
	}
	return nil
}

// Draft is a partially-populated record under construction between
// capture and save. ID, CreatedAt and the image are assigned at capture
// time; the rest is filled by extraction or by the user.
type Draft struct {
	ID          string   `json:"id"`
	Merchant    string   `json:"merchant"`
	TotalCents  int64    `json:"total_cents"`
	Date        string   `json:"date"`
	Category    Category `json:"category"`
	Summary     string   `json:"summary"`
	ImageData   []byte   `json:"image_data,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	Advisory    string   `json:"advisory,omitempty"` // Recoverable extraction error, for display
}

// MergeDefaults fills a draft's editable fields from extraction output,
// substituting an explicit fallback for every field the result left
// empty. Enumerating the whole default policy here keeps it auditable.
func (d *Draft) MergeDefaults(fields extraction.Fields, today time.Time) {
	d.Merchant = strings.TrimSpace(fields.Merchant)
	if d.Merchant == "" {
		d.Merchant = "Unknown Merchant"
	}
	d.TotalCents = DollarsToCents(fields.Total)
	if d.TotalCents < 0 {
		d.TotalCents = 0
	}
	d.Date = fields.Date
	if d.Date == "" {
		d.Date = today.Format("2006-01-02")
	}
	d.Category = ParseCategory(fields.Category)
	d.Summary = strings.TrimSpace(fields.Summary)
}

// Promote finalizes a draft into a record. The caller validates.
func (d *Draft) Promote() Record {
	return Record{
		ID:          d.ID,
		Merchant:    strings.TrimSpace(d.Merchant),
		TotalCents:  d.TotalCents,
		Date:        d.Date,
		Category:    d.Category,
		Summary:     strings.TrimSpace(d.Summary),
		ImageData:   d.ImageData,
		ContentType: d.ContentType,
		CreatedAt:   d.CreatedAt,
	}
}

// DollarsToCents converts a decimal dollar amount to integer cents,
// rounding to the nearest cent.
func DollarsToCents(dollars float64) int64 {
	if dollars >= 0 {
		return int64(dollars*100 + 0.5)
	}
	return int64(dollars*100 - 0.5)
}

// FormatCents renders integer cents as a decimal string with exactly
// two fraction digits.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
}

// Upsert inserts rec into the collection, replacing an existing record
// with the same ID in place. Genuinely new records are prepended so the
// list stays newest-inserted-first; updated records keep their position.
func Upsert(records []Record, rec Record) []Record {
	for i := range records {
		if records[i].ID == rec.ID {
			out := make([]Record, len(records))
			copy(out, records)
			out[i] = rec
			return out
		}
	}
	out := make([]Record, 0, len(records)+1)
	out = append(out, rec)
	return append(out, records...)
}

// Remove returns the collection without the record matching id.
func Remove(records []Record, id string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// SumCents is the exact sum of every record's total.
func SumCents(records []Record) int64 {
	var sum int64
	for _, r := range records {
		sum += r.TotalCents
	}
	return sum
}
