package models

import "time"

// ThreatRecord is the canonical threat entity held in the primary store.
// Countries and SourceURLs distinguish "unknown" (nil, serialized as null)
// from "explicitly empty" (zero-length slice).
type ThreatRecord struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Region          string    `json:"region"`
	Countries       []string  `json:"countries"`
	Category        string    `json:"category"`
	Description     string    `json:"description"`
	PotentialImpact string    `json:"potential_impact"`
	SourceURLs      []string  `json:"source_urls"`
	DateMentioned   string    `json:"date_mentioned"`
	CreatedAt       time.Time `json:"created_at"`
}

// RawCandidate is one untrusted report as produced by the discovery adapter.
// Fields stay loosely typed until normalization.
type RawCandidate map[string]any

// AuditLogEntry mirrors a committed ThreatRecord into the secondary store,
// keyed by the primary id. It is non-authoritative and may legitimately be
// missing for a record that committed.
type AuditLogEntry struct {
	PrimaryID       int64    `json:"primary_id"`
	Title           string   `json:"title"`
	SourceURLs      []string `json:"source_urls"`
	CreatedAt       string   `json:"created_at"`
	Region          string   `json:"region"`
	Countries       []string `json:"countries"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	PotentialImpact string   `json:"potential_impact"`
	DateMentioned   string   `json:"date_mentioned"`
}

// RunSummary reports the outcome of one discovery run.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Attempted int    `json:"attempted"`
	Persisted int    `json:"persisted"`
	Failed    int    `json:"failed"`
}
