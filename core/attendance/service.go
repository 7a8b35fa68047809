package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/audit"
	"github.com/shulehq/shule/core/child"
	"github.com/shulehq/shule/core/rbac"
	"github.com/shulehq/shule/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("attendance record not found")
	ErrAlreadyMarked = errors.New("attendance is already marked for this child on this date")
)

// markerRoles are the roles allowed to record attendance.
var markerRoles = []user.Role{user.RoleSuper, user.RoleAdmin, user.RolePrincipal, user.RoleTeacher}

type (
	Repository interface {
		// CreateRecord returns ErrAlreadyMarked when a record for the
		// (child, date) pair already exists.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		GetRecordByID(ctx context.Context, id string) (Record, error)
		UpdateRecord(ctx context.Context, rec Record) (Record, error)
		QueryRecords(ctx context.Context, filter QueryFilter) ([]Record, error)
	}

	Service interface {
		Mark(ctx context.Context, actorID, schoolID string, nr NewRecord) (Record, error)
		CheckOut(ctx context.Context, actorID, schoolID, recordID string) (Record, error)
		Query(ctx context.Context, actorID, schoolID string, filter QueryFilter) ([]Record, error)
	}

	service struct {
		repo     Repository
		children child.Repository
		access   *rbac.Validator
		recorder audit.Recorder
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, children child.Repository, access *rbac.Validator, recorder audit.Recorder) Service {
	return &service{
		repo:     repo,
		children: children,
		access:   access,
		recorder: recorder,
	}
}

// Mark records a child's attendance for a date. Marking a present child also
// stamps the check-in time.
func (svc *service) Mark(ctx context.Context, actorID, schoolID string, nr NewRecord) (Record, error) {
	acc, err := svc.access.Validate(ctx, actorID, schoolID, markerRoles...)
	if err != nil {
		return Record{}, err
	}

	chd, err := svc.children.GetChildByID(ctx, nr.ChildID)
	if err != nil {
		if errors.Cause(err) == child.ErrNotFound {
			return Record{}, core.NewValidationError(err, core.FieldError{Field: "child_id", Error: err.Error()})
		}
		return Record{}, errors.Wrap(err, "finding child")
	}
	if chd.SchoolID != schoolID {
		return Record{}, core.NewFieldError("child_id", "child does not belong to this school")
	}

	now := time.Now().UTC()
	rec := Record{
		SchoolID:  schoolID,
		ChildID:   nr.ChildID,
		Date:      nr.Date,
		Status:    nr.Status,
		MarkedBy:  acc.Actor.ID,
		Notes:     nr.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nr.Status == StatusPresent || nr.Status == StatusLate {
		rec.CheckIn = now
	}
	rec, err = svc.repo.CreateRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}

	svc.recorder.Record(ctx, audit.Entry{
		ActorID:    acc.Actor.ID,
		ActorRole:  acc.Actor.Role,
		Action:     audit.ActionCreate,
		EntityType: audit.EntityAttendance,
		EntityID:   rec.ID,
		SchoolID:   schoolID,
		Changes: map[string]interface{}{
			"child_id": rec.ChildID,
			"date":     rec.Date.Format("2006-01-02"),
			"status":   rec.Status,
		},
	})
	return rec, nil
}

// CheckOut stamps the check-out time on an existing record.
func (svc *service) CheckOut(ctx context.Context, actorID, schoolID, recordID string) (Record, error) {
	acc, err := svc.access.Validate(ctx, actorID, schoolID, markerRoles...)
	if err != nil {
		return Record{}, err
	}

	rec, err := svc.repo.GetRecordByID(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	if rec.SchoolID != schoolID {
		return Record{}, ErrNotFound
	}

	now := time.Now().UTC()
	rec.CheckOut = now
	rec.UpdatedAt = now
	rec, err = svc.repo.UpdateRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}

	svc.recorder.Record(ctx, audit.Entry{
		ActorID:    acc.Actor.ID,
		ActorRole:  acc.Actor.Role,
		Action:     audit.ActionUpdate,
		EntityType: audit.EntityAttendance,
		EntityID:   rec.ID,
		SchoolID:   schoolID,
		Changes:    map[string]interface{}{"check_out": now.Format(time.RFC3339)},
	})
	return rec, nil
}

func (svc *service) Query(ctx context.Context, actorID, schoolID string, filter QueryFilter) ([]Record, error) {
	if _, err := svc.access.Validate(ctx, actorID, schoolID, markerRoles...); err != nil {
		return nil, err
	}
	filter.SchoolID = schoolID
	return svc.repo.QueryRecords(ctx, filter)
}
