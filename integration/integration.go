// Package integration holds the external feed subscriptions of accounts and
// their lifecycle status, as seen by the account owner.
package integration

import (
	"net/url"
	"time"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/async"
)

// Status is the lifecycle status of an integration.
type Status string

const (
	StatusPending    Status = "pending"     // created, never run
	StatusInAnalysis Status = "in_analysis" // last run failed or was reset; awaiting retry
	StatusUpdating   Status = "updating"    // a run is in progress
	StatusIntegrated Status = "integrated"  // last run succeeded
	StatusDisabled   Status = "disabled"    // excluded from scheduling
)

// IsValidStatus reports whether s is a known status.
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusInAnalysis, StatusUpdating, StatusIntegrated, StatusDisabled:
		return true
	}
	return false
}

// ValidateFeedURL accepts absolute http and https URLs only. Local files
// reach a run through an explicit source, never through a stored feed URL.
func ValidateFeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.NewInvalidRequestError("invalid feed url %q: %v", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewInvalidRequestError("feed url %q is not an http(s) URL", raw)
	}
	return nil
}

// Integration is one external feed subscription of an account.
type Integration struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	System    string `json:"system"` // adapter name, or "auto"
	FeedURL   string `json:"feed_url"`
	Status    Status `json:"status"`

	QueueClass     async.QueueClass `json:"queue_class"`
	HighlightLimit int              `json:"highlight_limit"` // plan entitlement; 0 = no highlights

	LastRunStartedAt *time.Time `json:"last_run_started_at,omitempty"`
	LastRunEndedAt   *time.Time `json:"last_run_ended_at,omitempty"`
	LastSuccessAt    *time.Time `json:"last_success_at,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	ExecutionMS      int64      `json:"execution_ms"`
	ProcessedItems   int        `json:"processed_items"`
	TotalItems       int        `json:"total_items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunMetrics are persisted on the integration after a successful run.
type RunMetrics struct {
	StartedAt      time.Time
	EndedAt        time.Time
	ProcessedItems int
	TotalItems     int
}

// ExecutionMS is the run duration in milliseconds.
func (m RunMetrics) ExecutionMS() int64 {
	return m.EndedAt.Sub(m.StartedAt).Milliseconds()
}
