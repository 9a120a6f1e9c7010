package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// DefaultCollections is the ordered list of collections copied when none is configured.
var DefaultCollections = []string{
	"users",
	"contests",
	"courses",
	"enrollments",
	"notifications",
	"quizzes",
	"quizattempts",
	"submissions",
	"tasks",
}

// DefaultBatchSize is the number of documents read and inserted per round-trip.
const DefaultBatchSize = 1000

// MigrationParams contains the parameters of a single migration run
type MigrationParams struct {
	SourceDB    string   `json:"sourceDb"`
	TargetDB    string   `json:"targetDb"`
	Collections []string `json:"collections"`
	BatchSize   int      `json:"batchSize,omitempty"`
	CopyIndexes bool     `json:"copyIndexes"`
}

// IndexSpec describes a secondary index as reported by listIndexes.
// Keys keeps the field order of the source index.
type IndexSpec struct {
	Name    string `json:"name"`
	Keys    bson.D `json:"keys"`
	Options bson.D `json:"options,omitempty"`
}

// OutcomeStatus is the result of migrating one collection.
type OutcomeStatus string

const (
	StatusMigrated     OutcomeStatus = "migrated"
	StatusSkippedEmpty OutcomeStatus = "skipped_empty"
	StatusDeclined     OutcomeStatus = "declined"
	StatusFailed       OutcomeStatus = "failed"
)

// CollectionOutcome contains the result of a single collection migration
type CollectionOutcome struct {
	CollectionName string        `json:"collectionName"`
	Status         OutcomeStatus `json:"status"`
	SourceCount    int64         `json:"sourceCount"`
	TargetCount    int64         `json:"targetCount"`
	DocumentsCount int64         `json:"documentsCount"`
	IndexesCopied  int           `json:"indexesCopied"`
	ErrorMessage   string        `json:"errorMessage,omitempty"`
}

// Success reports whether the outcome counts as a successful migration.
// Skips and declined overwrites are successes.
func (o CollectionOutcome) Success() bool {
	return o.Status != StatusFailed
}

// ReportRow is one line of the verification report.
type ReportRow struct {
	CollectionName string `json:"collectionName"`
	SourceCount    int64  `json:"sourceCount"`
	TargetCount    int64  `json:"targetCount"`
	Err            string `json:"error,omitempty"`
}

// Match reports whether both counts were read and are equal.
func (r ReportRow) Match() bool {
	return r.Err == "" && r.SourceCount == r.TargetCount
}

// Report contains the independently recounted state of every collection.
type Report struct {
	Rows        []ReportRow `json:"rows"`
	TotalSource int64       `json:"totalSource"`
	TotalTarget int64       `json:"totalTarget"`
}

// Successful reports whether the totals agree.
func (r Report) Successful() bool {
	return r.TotalSource == r.TotalTarget
}

// RunResult contains the overall result of a migration run
type RunResult struct {
	SourceDB   string              `json:"sourceDb"`
	TargetDB   string              `json:"targetDb"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
	Outcomes   []CollectionOutcome `json:"outcomes"`
	Report     Report              `json:"report"`
}

// SuccessCount returns the number of successful outcomes.
func (r RunResult) SuccessCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success() {
			n++
		}
	}
	return n
}
