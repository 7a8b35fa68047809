package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehq/shule/core/audit"
	"github.com/shulehq/shule/core/user"
	inmemdb "github.com/shulehq/shule/storage/database/inmem"
)

type testLogger struct {
	errCount int
}

func (l *testLogger) Enable(bool)                  {}
func (l *testLogger) Debug(string, ...interface{}) {}
func (l *testLogger) Info(string, ...interface{})  {}
func (l *testLogger) Warn(string, ...interface{})  {}
func (l *testLogger) Error(string, ...interface{}) { l.errCount++ }
func (l *testLogger) Fatal(string, ...interface{}) {}

type failingRepo struct {
	err error
}

func (r failingRepo) CreateEntry(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	return audit.Entry{}, r.err
}

func (r failingRepo) QueryEntries(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	return nil, r.err
}

func TestRecorder_Record(t *testing.T) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("opening inmem db: %v", err)
	}
	repo := inmemdb.NewAuditRepository(db)
	logger := &testLogger{}

	var hookedEntry audit.Entry
	var hookedErr error
	rec := audit.NewRecorder(repo, logger, func(entry audit.Entry, err error) {
		hookedEntry = entry
		hookedErr = err
	})

	schoolID := "11f53a9b-b462-4f69-a54a-bdcbbca9a943"
	rec.Record(context.Background(), audit.Entry{
		ActorID:    "actor-1",
		ActorRole:  user.RoleAdmin,
		Action:     audit.ActionCreate,
		EntityType: audit.EntityUser,
		EntityID:   "entity-1",
		SchoolID:   schoolID,
		Changes:    map[string]interface{}{"email": "t@test.cd"},
	})

	if hookedErr != nil {
		t.Fatalf("Record() hook error = %v; want nil", hookedErr)
	}
	if hookedEntry.ID == "" {
		t.Error("Record() did not assign an entry ID")
	}
	if hookedEntry.CreatedAt.IsZero() {
		t.Error("Record() did not stamp CreatedAt")
	}
	if logger.errCount != 0 {
		t.Errorf("Record() logged %d errors; want 0", logger.errCount)
	}

	entries, err := rec.Query(context.Background(), audit.Filter{SchoolID: schoolID})
	if err != nil {
		t.Fatalf("Query(): %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Query() returned %d entries; want 1", len(entries))
	}
	if entries[0].Action != audit.ActionCreate || entries[0].EntityType != audit.EntityUser {
		t.Errorf("Query() entry = %+v", entries[0])
	}
}

// a failed audit write is logged and swallowed; the caller never sees it.
func TestRecorder_Record_bestEffort(t *testing.T) {
	repoErr := errors.New("db gone")
	logger := &testLogger{}

	var hookedErr error
	rec := audit.NewRecorder(failingRepo{err: repoErr}, logger, func(entry audit.Entry, err error) {
		hookedErr = err
	})

	rec.Record(context.Background(), audit.Entry{
		ActorID:    "actor-1",
		Action:     audit.ActionDelete,
		EntityType: audit.EntityChild,
	})

	if errors.Cause(hookedErr) != repoErr {
		t.Errorf("hook error = %v; want %v", hookedErr, repoErr)
	}
	if logger.errCount != 1 {
		t.Errorf("Record() logged %d errors; want 1", logger.errCount)
	}
}

func TestRecorder_Record_keepsCreatedAt(t *testing.T) {
	db, _ := inmemdb.Open()
	repo := inmemdb.NewAuditRepository(db)

	var hookedEntry audit.Entry
	rec := audit.NewRecorder(repo, &testLogger{}, func(entry audit.Entry, err error) {
		hookedEntry = entry
	})

	stamp := time.Date(2026, time.March, 5, 8, 30, 0, 0, time.UTC)
	rec.Record(context.Background(), audit.Entry{
		ActorID:    "actor-1",
		Action:     audit.ActionUpdate,
		EntityType: audit.EntityAttendance,
		CreatedAt:  stamp,
	})

	if !hookedEntry.CreatedAt.Equal(stamp) {
		t.Errorf("Record() CreatedAt = %v; want %v", hookedEntry.CreatedAt, stamp)
	}
}
