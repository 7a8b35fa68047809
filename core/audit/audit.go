// Package audit appends immutable who-did-what-to-what records.
// Recording is best-effort: a failed audit write never fails the mutation
// that triggered it.
package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/user"
)

// Actions
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionLink     = "link"
	ActionUnlink   = "unlink"
	ActionAssign   = "assign"
	ActionUnassign = "unassign"
)

// Entity types
const (
	EntityUser              = "user"
	EntitySchool            = "school"
	EntityClassroom         = "classroom"
	EntityChild             = "child"
	EntityParentLink        = "parent_link"
	EntityTeacherAssignment = "teacher_assignment"
	EntityAttendance        = "attendance"
)

type Entry struct {
	ID         string                 `json:"id"`
	ActorID    string                 `json:"actor_id"`
	ActorRole  user.Role              `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	SchoolID   string                 `json:"school_id,omitempty"`
	Changes    map[string]interface{} `json:"changes,omitempty"`
	CreatedAt  time.Time              `json:"created_at"` // UTC
}

// Filter selects audit entries; zero fields are ignored.
type Filter struct {
	SchoolID   string    `query:"school_id"`
	ActorID    string    `query:"actor_id"`
	EntityType string    `query:"entity_type"`
	From       time.Time `query:"from"`
	To         time.Time `query:"to"`
}

type Repository interface {
	CreateEntry(ctx context.Context, entry Entry) (Entry, error)
	QueryEntries(ctx context.Context, filter Filter) ([]Entry, error)
}

// Hook is invoked after every record attempt with the entry and the write
// outcome. Tests use it to assert audit success or failure.
type Hook func(Entry, error)

type (
	Recorder interface {
		// Record appends an entry. Failure is logged and swallowed.
		Record(ctx context.Context, entry Entry)
		Query(ctx context.Context, filter Filter) ([]Entry, error)
	}

	recorder struct {
		repo   Repository
		logger core.Logger
		hook   Hook
	}
)

var _ Recorder = (*recorder)(nil)

func NewRecorder(repo Repository, logger core.Logger, hook ...Hook) Recorder {
	rec := &recorder{repo: repo, logger: logger}
	if len(hook) > 0 {
		rec.hook = hook[0]
	}
	return rec
}

func (rec *recorder) Record(ctx context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry, err := rec.repo.CreateEntry(ctx, entry)
	if err != nil {
		// availability over completeness: the business action already
		// succeeded, so only log the missing trail.
		rec.logger.Error("recording audit entry", errors.Wrap(err, "recording audit entry"))
	}
	if rec.hook != nil {
		rec.hook(entry, err)
	}
}

func (rec *recorder) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	return rec.repo.QueryEntries(ctx, filter)
}
