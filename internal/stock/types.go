// Package stock defines core types shared across subsystems.
package stock

import (
	"net/http"
	"time"
)

// CheckStatus represents the lifecycle state of a stock check.
type CheckStatus string

// Check status values persisted in the store.
const (
	CheckStatusQueued    CheckStatus = "queued"
	CheckStatusRunning   CheckStatus = "running"
	CheckStatusSucceeded CheckStatus = "succeeded"
	CheckStatusFailed    CheckStatus = "failed"
	CheckStatusCanceled  CheckStatus = "canceled"
)

// Terminal reports whether the status ends the check lifecycle. A check in
// a terminal status never transitions again.
func (s CheckStatus) Terminal() bool {
	switch s {
	case CheckStatusSucceeded, CheckStatusFailed, CheckStatusCanceled:
		return true
	default:
		return false
	}
}

// Trigger records what caused a check to run.
type Trigger string

// Trigger values carried on CheckRequest.
const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerOneShot   Trigger = "oneshot"
)

// Item is one stock row scraped from the page.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	InStock  bool   `json:"in_stock"`
	RawLabel string `json:"raw_label,omitempty"`
}

// Check is the metadata persisted for each check run.
type Check struct {
	ID        string      `json:"id"`
	Status    CheckStatus `json:"status"`
	Trigger   Trigger     `json:"trigger"`
	Requested time.Time   `json:"requested_at"`
	Started   *time.Time  `json:"started_at,omitempty"`
	Finished  *time.Time  `json:"finished_at,omitempty"`
	ErrorText string      `json:"error_text,omitempty"`
	Counters  Counters    `json:"counters"`
}

// Counters tracks per-check stats.
type Counters struct {
	ItemsSeen    int `json:"items_seen"`
	TargetsFound int `json:"targets_found"`
	TargetsAvail int `json:"targets_available"`
	Retries      int `json:"retries"`
}

// Snapshot is persisted for each successful scrape.
type Snapshot struct {
	CheckID      string      `json:"check_id"`
	URL          string      `json:"url"`
	StatusCode   int         `json:"status_code"`
	UsedHeadless bool        `json:"used_headless"`
	FetchedAt    time.Time   `json:"fetched_at"`
	DurationMs   int64       `json:"duration_ms"`
	ContentHash  string      `json:"content_hash"`
	Headers      http.Header `json:"headers,omitempty"`
	BlobURI      string      `json:"blob_uri,omitempty"`
	Items        []Item      `json:"items"`
	TargetHits   []Item      `json:"target_hits"`
}

// Alert records one delivered (or attempted) notification.
type Alert struct {
	ID          string    `json:"id"`
	CheckID     string    `json:"check_id"`
	SentAt      time.Time `json:"sent_at"`
	Channel     string    `json:"channel"`
	Recipient   string    `json:"recipient,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Seeds       []Item    `json:"seeds"`
	Delivered   bool      `json:"delivered"`
	ErrorText   string    `json:"error_text,omitempty"`
}

// CheckRequest wraps a check ready to run.
type CheckRequest struct {
	CheckID   string
	Trigger   Trigger
	Attempt   int
	Submitted int64
}

// ScrapeResult is returned by a Scraper implementation.
type ScrapeResult struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	HTML         []byte
	Items        []Item
	Duration     time.Duration
	UsedHeadless bool
}

// CheckResult is returned by the API status/detail endpoints.
type CheckResult struct {
	Check    Check     `json:"check"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}
