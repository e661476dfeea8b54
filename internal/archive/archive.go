// Package archive provides the persistent memory store used to retain
// cross-task history: execution feedback, design decisions, pattern
// observations, co-modification statistics, and emitted context packages.
//
// The archive is append-only. Records are never updated in place; state
// changes (e.g. a human sync request being answered) are written as new
// records and readers take the most recent one. A duplicate append is
// acceptable; a corrupted record is not.
package archive

import (
	"context"
	"encoding/json"
	"time"
)

// Kind identifies what a record's payload contains
type Kind string

const (
	KindTask           Kind = "task"
	KindContextPackage Kind = "context_package"
	KindFeedback       Kind = "feedback"
	KindDecision       Kind = "decision"
	KindPattern        Kind = "pattern"
	KindCoModification Kind = "co_modification"
	KindHumanSync      Kind = "human_sync"
)

// Record is the unit of storage
type Record struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Tags        []string        `json:"tags,omitempty"`
	ProjectPath string          `json:"project_path"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Filter scopes a search. ProjectPath is mandatory: unscoped searches are
// how unrelated projects' files leaked into mustRead in predecessor
// systems, so the requirement is enforced at this boundary rather than by
// caller discipline.
type Filter struct {
	ProjectPath string
	Kind        Kind   // optional
	Tag         string // optional, exact tag match
	Limit       int    // optional, 0 = default (50)
}

// Archive defines the store/search surface the pipeline depends on.
// Components receive it as an explicit dependency so tests can substitute
// deterministic fakes.
type Archive interface {
	// Store appends a record and returns its ID. If the record carries no
	// ID one is assigned. Store never mutates existing records.
	Store(ctx context.Context, rec *Record) (string, error)

	// Search returns records matching the query text and filter, newest
	// first. An empty query returns filter matches only. Search returns an
	// error wrapping types.ErrArchiveUnavailable if the store cannot be
	// reached, and rejects filters without a project path.
	Search(ctx context.Context, query string, filter Filter) ([]*Record, error)

	// Get fetches a single record by ID.
	Get(ctx context.Context, id string) (*Record, error)

	// Close releases the underlying store.
	Close() error
}
