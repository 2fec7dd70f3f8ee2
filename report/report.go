// Package report carries the per-run summary threaded through the pipeline
// stages. Record-level problems are Skip or Diagnostic entries on a RunReport;
// run-level problems are returned as *Abort errors.
package report

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Reason classifies a skipped record or a diagnostic.
type Reason string

const (
	// Skip reasons: the record is not persisted.
	ReasonMissingCode         Reason = "missing_code"
	ReasonDuplicateCode       Reason = "duplicate_code"
	ReasonUnresolvedOfferType Reason = "unresolved_offer_type"

	// Diagnostic reasons: the record is kept with a fallback value.
	ReasonUnmatchedPropertyType Reason = "unmatched_property_type"
	ReasonUnmatchedGuarantee    Reason = "unmatched_guarantee"
	ReasonUnmatchedStatus       Reason = "unmatched_status"
	ReasonUnmatchedFeature      Reason = "unmatched_feature"
	ReasonInvalidNumber         Reason = "invalid_number"
	ReasonInvalidPostalCode     Reason = "invalid_postal_code"
	ReasonInvalidImageURL       Reason = "invalid_image_url"
	ReasonUnresolvedLocation    Reason = "unresolved_location"
	ReasonHighlightCapped       Reason = "highlight_capped"
	ReasonManuallyDeactivated   Reason = "manually_deactivated"
	ReasonManualListing         Reason = "manual_listing"
	ReasonOtherIntegration      Reason = "owned_by_other_integration"
	ReasonImageCapExceeded      Reason = "image_cap_exceeded"
	ReasonImageFailed           Reason = "image_failed"
	ReasonImageNameCollision    Reason = "image_name_collision"
)

// Entry is one skip or diagnostic attached to a listing code.
type Entry struct {
	Code   string `json:"code"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Counts are the numeric results of a run.
type Counts struct {
	Total          int `json:"total"`     // raw records extracted
	Processed      int `json:"processed"` // normalized listings handed to the upsert engine
	Skipped        int `json:"skipped"`   // skip entries, one per rejected code
	Inserted       int `json:"inserted"`
	Updated        int `json:"updated"`
	Unchanged      int `json:"unchanged"`
	Protected      int `json:"protected"` // manually deactivated, left untouched
	Removed        int `json:"removed"`
	ImagesInserted int `json:"images_inserted"`
	ImagesRemoved  int `json:"images_removed"`
	ImageFailures  int `json:"image_failures"`
}

func (c *Counts) add(o Counts) {
	c.Total += o.Total
	c.Processed += o.Processed
	c.Skipped += o.Skipped
	c.Inserted += o.Inserted
	c.Updated += o.Updated
	c.Unchanged += o.Unchanged
	c.Protected += o.Protected
	c.Removed += o.Removed
	c.ImagesInserted += o.ImagesInserted
	c.ImagesRemoved += o.ImagesRemoved
	c.ImageFailures += o.ImageFailures
}

// RunReport is the structured summary of one integration run. Each stage
// returns its own RunReport which the orchestrator merges.
type RunReport struct {
	IntegrationID int64     `json:"integration_id"`
	Provider      string    `json:"provider,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Counts
	Skips       []Entry  `json:"skips,omitempty"`
	Diagnostics []Entry  `json:"diagnostics,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// New returns an empty report for a stage.
func New() *RunReport {
	return &RunReport{}
}

// Skip records a record excluded from persistence.
func (r *RunReport) Skip(code string, reason Reason, detail string) {
	r.Skips = append(r.Skips, Entry{Code: code, Reason: reason, Detail: detail})
	r.Skipped++
}

// Note records a non-fatal diagnostic about a kept record.
func (r *RunReport) Note(code string, reason Reason, detail string) {
	r.Diagnostics = append(r.Diagnostics, Entry{Code: code, Reason: reason, Detail: detail})
}

// Warn attaches a run-level warning.
func (r *RunReport) Warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Merge folds a stage report into r. Identity fields of r win when set.
func (r *RunReport) Merge(o *RunReport) {
	if o == nil {
		return
	}
	if r.IntegrationID == 0 {
		r.IntegrationID = o.IntegrationID
	}
	if r.Provider == "" {
		r.Provider = o.Provider
	}
	r.Counts.add(o.Counts)
	r.Skips = append(r.Skips, o.Skips...)
	r.Diagnostics = append(r.Diagnostics, o.Diagnostics...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// SkipsByReason counts skip entries per reason.
func (r *RunReport) SkipsByReason() map[Reason]int {
	return countByReason(r.Skips)
}

// DiagnosticsByReason counts diagnostics per reason.
func (r *RunReport) DiagnosticsByReason() map[Reason]int {
	return countByReason(r.Diagnostics)
}

// Reasons returns every distinct skip and diagnostic reason, sorted.
func (r *RunReport) Reasons() []Reason {
	all := r.SkipsByReason()
	maps.Copy(all, r.DiagnosticsByReason())
	keys := make([]Reason, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Duration is the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func countByReason(entries []Entry) map[Reason]int {
	out := make(map[Reason]int)
	for _, e := range entries {
		out[e.Reason]++
	}
	return out
}
