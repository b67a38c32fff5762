package expense

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrNothingToExport is returned when the collection is empty; both
// delivery mechanisms are disabled in that case.
var ErrNothingToExport = errors.New("nothing to export")

// mailBodyPreamble precedes the tabular text in the mail body.
const mailBodyPreamble = "Here is your expense report in CSV format (copy and save as .csv to open in Excel):\n\n"

// CSV serializes the collection as comma-separated text. Merchant,
// category and summary are always wrapped in double quotes with inner
// quotes doubled; totals are rendered to exactly two decimal places.
func CSV(records []Record) (string, error) {
	if len(records) == 0 {
		return "", ErrNothingToExport
	}

	var b strings.Builder
	b.WriteString("Date,Merchant,Category,Total,Summary,ID")
	for _, r := range records {
		b.WriteByte('\n')
		b.WriteString(r.Date)
		b.WriteByte(',')
		b.WriteString(quoteField(r.Merchant))
		b.WriteByte(',')
		b.WriteString(quoteField(string(r.Category)))
		b.WriteByte(',')
		b.WriteString(FormatCents(r.TotalCents))
		b.WriteByte(',')
		b.WriteString(quoteField(r.Summary))
		b.WriteByte(',')
		b.WriteString(r.ID)
	}
	return b.String(), nil
}

// quoteField wraps a value in double quotes, doubling any inner quotes.
func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ExportFilename is the download filename for the current date.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("snapspend_export_%s.csv", now.Format("2006-01-02"))
}

// MailtoURI builds a mail-compose URI with the tabular text embedded in
// the body. No attachment mechanism; viable for small collections only.
func MailtoURI(records []Record, now time.Time) (string, error) {
	csv, err := CSV(records)
	if err != nil {
		return "", err
	}
	subject := fmt.Sprintf("Expense Report - %s", now.Format("2006-01-02"))
	body := mailBodyPreamble + csv
	return fmt.Sprintf("mailto:?subject=%s&body=%s", encodeURIComponent(subject), encodeURIComponent(body)), nil
}

// encodeURIComponent percent-encodes for use inside a mailto query.
// url.QueryEscape uses + for spaces, which mail clients do not decode.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
