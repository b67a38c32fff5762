package expense

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snapspend/snapspend/internal/extraction"
)

// State identifies where the capture/verify workflow currently is.
type State string

const (
	StateList     State = "LIST"     // resting state, showing the collection
	StateScanning State = "SCANNING" // extraction call outstanding
	StateEditing  State = "EDITING"  // draft under review
	StateDetails  State = "DETAILS"  // read-only view of a saved record
)

var (
	// ErrInvalidTransition is returned for any operation the current
	// state does not permit.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRecordNotFound is returned when an operation names an ID the
	// collection does not hold.
	ErrRecordNotFound = errors.New("record not found")
)

// advisoryExtractionFailed is shown on the edit form when extraction
// fails and the user has to fill fields manually.
const advisoryExtractionFailed = "Failed to analyze receipt. Please try again or enter details manually."

// IDGenerator generates unique IDs for records.
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

// Confirmer answers blocking yes/no prompts, such as the deletion
// confirmation.
type Confirmer interface {
	Confirm(prompt string) bool
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Edits carries the user-reviewed field values submitted from the edit
// form.
type Edits struct {
	Merchant   string   `json:"merchant"`
	TotalCents int64    `json:"total_cents"`
	Date       string   `json:"date"`
	Category   Category `json:"category"`
	Summary    string   `json:"summary"`
}

// Workflow owns the in-memory collection, the current view state and
// the in-progress draft, and drives every mutation through the Store.
// The product model is single-writer; the mutex serializes the
// concurrent callers Go's HTTP layer brings along. At most one
// extraction call is in flight because Capture is only legal from the
// resting state.
type Workflow struct {
	mu        sync.Mutex
	store     Store
	extractor extraction.Extractor
	idGen     IDGenerator
	clock     TimeSource

	state      State
	records    []Record
	draft      *Draft
	selectedID string
}

// NewWorkflow creates a workflow and loads the stored collection.
func NewWorkflow(store Store, extractor extraction.Extractor) (*Workflow, error) {
	return NewWorkflowWithDeps(store, extractor, &uuidGenerator{}, &defaultTimeSource{})
}

// NewWorkflowWithDeps creates a workflow with custom dependencies for
// testing.
func NewWorkflowWithDeps(store Store, extractor extraction.Extractor, idGen IDGenerator, clock TimeSource) (*Workflow, error) {
	records, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	return &Workflow{
		store:     store,
		extractor: extractor,
		idGen:     idGen,
		clock:     clock,
		state:     StateList,
		records:   records,
	}, nil
}

// State returns the current workflow state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Records returns a copy of the current collection in store order,
// newest-inserted-first.
func (w *Workflow) Records() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Record, len(w.records))
	copy(out, w.records)
	return out
}

// TotalCents is the running total over the whole collection,
// recomputed from scratch on every call.
func (w *Workflow) TotalCents() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return SumCents(w.records)
}

// Capture starts a new draft from a captured image and runs the
// extraction call. It is only legal from the list view. The extraction
// result, success or failure, lands the workflow in the editing state:
// a failure degrades to manual entry with an advisory message rather
// than aborting the flow.
func (w *Workflow) Capture(imageData []byte, mimeType string) (Draft, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateList {
		return Draft{}, fmt.Errorf("%w: capture from %s", ErrInvalidTransition, w.state)
	}

	now := w.clock.Now()
	draft := &Draft{
		ID:          w.idGen.Generate(),
		ImageData:   imageData,
		ContentType: mimeType,
		CreatedAt:   now.UnixMilli(),
	}
	w.state = StateScanning
	w.draft = draft

	fields, err := w.extractor.Extract(imageData, mimeType)
	if err != nil {
		// Deliberate degrade-to-manual-entry: the draft keeps only its
		// identity and image, the user fills the rest.
		slog.Warn("Receipt extraction failed", "id", draft.ID, "content_type", mimeType, "error", err)
		draft.Advisory = advisoryExtractionFailed
	} else {
		draft.MergeDefaults(*fields, now)
	}

	w.state = StateEditing
	return *draft, nil
}

// Draft returns the draft under review. Only meaningful while editing.
func (w *Workflow) Draft() (Draft, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateEditing || w.draft == nil {
		return Draft{}, fmt.Errorf("%w: no draft in %s", ErrInvalidTransition, w.state)
	}
	return *w.draft, nil
}

// Save applies the reviewed edits to the draft, promotes it to a record
// and upserts it into the store. Validation failure leaves the workflow
// editing with nothing persisted.
func (w *Workflow) Save(edits Edits) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateEditing || w.draft == nil {
		return Record{}, fmt.Errorf("%w: save from %s", ErrInvalidTransition, w.state)
	}

	w.draft.Merchant = edits.Merchant
	w.draft.TotalCents = edits.TotalCents
	w.draft.Date = edits.Date
	w.draft.Category = edits.Category
	w.draft.Summary = edits.Summary

	rec := w.draft.Promote()
	if err := rec.Validate(); err != nil {
		return Record{}, fmt.Errorf("validating record: %w", err)
	}

	updated := Upsert(w.records, rec)
	if err := w.store.SaveAll(updated); err != nil {
		return Record{}, fmt.Errorf("saving records: %w", err)
	}

	w.records = updated
	w.draft = nil
	w.selectedID = ""
	w.state = StateList
	return rec, nil
}

// Cancel discards the draft without saving.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateEditing {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, w.state)
	}
	w.draft = nil
	w.selectedID = ""
	w.state = StateList
	return nil
}

// Select opens the read-only details view for a saved record.
func (w *Workflow) Select(id string) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateList {
		return Record{}, fmt.Errorf("%w: select from %s", ErrInvalidTransition, w.state)
	}
	for _, r := range w.records {
		if r.ID == id {
			w.selectedID = id
			w.state = StateDetails
			return r, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

// Edit re-enters edit mode on the selected record, keeping its ID,
// creation time and image so a field correction does not re-run
// extraction.
func (w *Workflow) Edit() (Draft, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateDetails {
		return Draft{}, fmt.Errorf("%w: edit from %s", ErrInvalidTransition, w.state)
	}
	rec, ok := w.find(w.selectedID)
	if !ok {
		return Draft{}, fmt.Errorf("%w: %s", ErrRecordNotFound, w.selectedID)
	}

	w.draft = &Draft{
		ID:          rec.ID,
		Merchant:    rec.Merchant,
		TotalCents:  rec.TotalCents,
		Date:        rec.Date,
		Category:    rec.Category,
		Summary:     rec.Summary,
		ImageData:   rec.ImageData,
		ContentType: rec.ContentType,
		CreatedAt:   rec.CreatedAt,
	}
	w.state = StateEditing
	return *w.draft, nil
}

// Done leaves the details view without mutating anything.
func (w *Workflow) Done() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateDetails {
		return fmt.Errorf("%w: done from %s", ErrInvalidTransition, w.state)
	}
	w.selectedID = ""
	w.state = StateList
	return nil
}

// Delete removes the selected record after an explicit confirmation.
// A declined confirmation leaves the collection and the view untouched;
// it is an aborted transition, not an error. Returns whether the record
// was deleted.
func (w *Workflow) Delete(id string, confirm Confirmer) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateDetails || w.selectedID != id {
		return false, fmt.Errorf("%w: delete from %s", ErrInvalidTransition, w.state)
	}
	if _, ok := w.find(id); !ok {
		return false, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	if !confirm.Confirm("Are you sure you want to delete this receipt?") {
		return false, nil
	}

	updated := Remove(w.records, id)
	if err := w.store.SaveAll(updated); err != nil {
		return false, fmt.Errorf("saving records: %w", err)
	}

	w.records = updated
	w.selectedID = ""
	w.state = StateList
	return true, nil
}

func (w *Workflow) find(id string) (Record, bool) {
	for _, r := range w.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}
