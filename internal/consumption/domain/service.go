package domain

import (
	"context"
	"io"
	"time"
)

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeUpdated  ChangeType = "updated"
	ChangeRemoved  ChangeType = "removed"
	ChangeImported ChangeType = "imported"
	ChangeReloaded ChangeType = "reloaded"
)

// ChangeEvent announces a mutation of the record list.
type ChangeEvent struct {
	ID         string     `json:"id"`
	Type       ChangeType `json:"type"`
	RecordIDs  []string   `json:"record_ids,omitempty"`
	Count      int        `json:"count"`
	Origin     string     `json:"origin"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Origin identifies the process that produced a change event.
type Origin string

// Notifier fans change events out to other views.
type Notifier interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

type ImportResult struct {
	Imported int `json:"imported"`
	Dropped  int `json:"dropped"`
}

type Service interface {
	List(ctx context.Context) ([]Record, error)
	Query(ctx context.Context, criteria Criteria) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Add(ctx context.Context, in RecordInput) (Record, error)
	AddBatch(ctx context.Context, inputs []RecordInput) ([]Record, error)
	// Update replaces every editable field. An unknown id is a no-op and
	// reports false.
	Update(ctx context.Context, id string, in RecordInput) (Record, bool, error)
	// Remove deletes by id; an unknown id succeeds without change.
	Remove(ctx context.Context, id string) error
	Import(ctx context.Context, r io.Reader) (ImportResult, error)
	Reload(ctx context.Context) error
	// ApplyExternal reloads after a change made by another process and
	// forwards event to local subscribers.
	ApplyExternal(ctx context.Context, event ChangeEvent) error
	// Subscribe registers fn for every change, local or external.
	Subscribe(fn func(ChangeEvent)) (unsubscribe func())
}

// Repository persists the full record list.
type Repository interface {
	// Load coerces the stored list. assigned reports that entries without an
	// id received fresh ones that are not yet persisted.
	Load(ctx context.Context) (records []Record, assigned bool, err error)
	Save(ctx context.Context, records []Record) error
}
