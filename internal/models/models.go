package models

import (
	"time"
)

// Action describes what the respondent did with their result
type Action string

const (
	ActionShare    Action = "share"
	ActionDownload Action = "download"
)

// ParseAction maps raw input onto an Action. Empty input becomes ActionShare;
// unknown values are kept as given.
func ParseAction(raw string) Action {
	if raw == "" {
		return ActionShare
	}
	return Action(raw)
}

// Known reports whether a is one of the enumerated actions
func (a Action) Known() bool {
	return a == ActionShare || a == ActionDownload
}

// Response represents one survey submission
type Response struct {
	ID        int64     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Percent   int       `db:"percent" json:"percent"`
	Bits      string    `db:"bits" json:"bits"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	Action    Action    `db:"action" json:"action"`
}

// ResponseDetail represents one selected item of a response
type ResponseDetail struct {
	ID         int64 `db:"id" json:"id"`
	ResponseID int64 `db:"response_id" json:"response_id"`
	Option     int   `db:"option" json:"option"`
}

// ImageArtifact represents a stored share image
type ImageArtifact struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Tally is the raw aggregate read from the store in one snapshot
type Tally struct {
	Count      int64
	MinPercent int
	MaxPercent int
	SumPercent int64
	Buckets    map[int]int64
	Actions    map[string]int64
	Options    map[int]int64
}

// BucketCount is one histogram bin
type BucketCount struct {
	Bucket int   `json:"bucket"`
	Count  int64 `json:"count"`
}

// ActionCounts partitions responses by action
type ActionCounts struct {
	Share    int64 `json:"share"`
	Download int64 `json:"download"`
	Other    int64 `json:"other"`
}

// OptionVotes is the number of responses that selected an item
type OptionVotes struct {
	Option int   `json:"option"`
	Votes  int64 `json:"votes"`
}

// StatsSummary is computed on demand and never persisted
type StatsSummary struct {
	Total       int64         `json:"total"`
	Min         int           `json:"min"`
	Max         int           `json:"max"`
	Avg         float64       `json:"avg"`
	Buckets     []BucketCount `json:"buckets"`
	Actions     ActionCounts  `json:"actions"`
	Options     []OptionVotes `json:"options"`
	GeneratedAt time.Time     `json:"generated_at"`
}
