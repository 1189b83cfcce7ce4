// Package models defines data structures shared by the pipeline stages.
package models

import "time"

// CardRecord is one persisted dataset entry.
type CardRecord struct {
	Identifier    string `csv:"identifier" json:"identifier"`
	Grade         int    `csv:"grade" json:"grade"`
	FrontImageURL string `csv:"front_image_url" json:"frontImageUrl"`
	BackImageURL  string `csv:"back_image_url" json:"backImageUrl"`
	Price         string `csv:"price" json:"price,omitempty"`
	Cert          string `csv:"cert" json:"cert,omitempty"`
}

// ImageCandidate is an image element as rendered on a listing page.
type ImageCandidate struct {
	URL    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ImagePair holds the front and back faces of a graded card.
type ImagePair struct {
	FrontURL string
	BackURL  string
}

// RenderedPage is the in-memory result of fetching one listing. It is never persisted.
type RenderedPage struct {
	Identifier string
	URL        string
	StatusCode int
	Images     []ImageCandidate
	Text       string
	HTML       string
}

// Extraction carries the grade/price stage output. A zero Grade means absent.
type Extraction struct {
	Grade   int
	Price   string
	Cert    string
	Source  string // "panel", "ocr" or "" when nothing matched
	OCRText string
}

// HasGrade reports whether a grade in [1,10] was extracted.
func (e Extraction) HasGrade() bool {
	return e.Grade >= 1 && e.Grade <= 10
}

// ListingState is a step of the per-listing state machine.
type ListingState string

const (
	StatePending    ListingState = "pending"
	StateFetching   ListingState = "fetching"
	StateExtracting ListingState = "extracting"
	StateAssembled  ListingState = "assembled"
	StateRejected   ListingState = "rejected"
)

// Rejection reasons.
const (
	ReasonFetchError      = "fetch_error"
	ReasonNoImages        = "no_images"
	ReasonGradeAbsent     = "grade_absent"
	ReasonImageMissing    = "image_missing"
	ReasonWatchdogTimeout = "watchdog_timeout"
	ReasonPanic           = "panic"
	ReasonDuplicate       = "duplicate"
	ReasonCanceled        = "canceled"
)

// Outcome is the terminal state of one listing.
type Outcome struct {
	Identifier string
	State      ListingState
	Record     *CardRecord
	Reason     string
	Err        error
	// Images is the selected pair, kept on rejections for reporting.
	Images ImagePair
	// GradeSource is "panel", "ocr" or "" when no strategy ran.
	GradeSource string
	Duration    time.Duration
}

// Accepted reports whether the listing produced a record.
func (o Outcome) Accepted() bool {
	return o.State == StateAssembled && o.Record != nil
}

// RunResult summarises one batch run.
type RunResult struct {
	RunID             string
	Records           []*CardRecord
	StartTime         time.Time
	EndTime           time.Time
	TotalCount        int
	AcceptedCount     int
	RejectedCount     int
	RejectedByReason  map[string]int
	RejectedIDs       []string
	FetchErrorsByType map[string]int
	OCRFallbacks      int
}
