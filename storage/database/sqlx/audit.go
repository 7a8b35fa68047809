package sqlxrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shulehq/shule/core/audit"
	"github.com/shulehq/shule/core/user"
)

type auditRow struct {
	ID         string      `db:"id"`
	ActorID    string      `db:"actor_id"`
	ActorRole  string      `db:"actor_role"`
	Action     string      `db:"action"`
	EntityType string      `db:"entity_type"`
	EntityID   string      `db:"entity_id"`
	SchoolID   null.String `db:"school_id"`
	Changes    null.JSON   `db:"changes"`
	CreatedAt  time.Time   `db:"created_at"`
}

func unpackAudit(row auditRow) (audit.Entry, error) {
	entry := audit.Entry{
		ID:         row.ID,
		ActorID:    row.ActorID,
		ActorRole:  user.Role(row.ActorRole),
		Action:     row.Action,
		EntityType: row.EntityType,
		EntityID:   row.EntityID,
		SchoolID:   row.SchoolID.String,
		CreatedAt:  row.CreatedAt,
	}
	if row.Changes.Valid {
		if err := json.Unmarshal(row.Changes.JSON, &entry.Changes); err != nil {
			return audit.Entry{}, errors.Wrap(err, "unmarshalling audit changes")
		}
	}
	return entry, nil
}

const auditColumns = `id, actor_id, actor_role, action, entity_type, entity_id, school_id, changes, created_at`

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) CreateEntry(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	changes := null.JSON{}
	if entry.Changes != nil {
		raw, err := json.Marshal(entry.Changes)
		if err != nil {
			return audit.Entry{}, errors.Wrap(err, "marshalling audit changes")
		}
		changes = null.JSONFrom(raw)
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO audit_entry (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.ActorID, string(entry.ActorRole), entry.Action, entry.EntityType, entry.EntityID,
		null.NewString(entry.SchoolID, entry.SchoolID != ""), changes, entry.CreatedAt.UTC())
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return entry, nil
}

func (repo auditRepository) QueryEntries(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_entry`
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SchoolID != "" {
		conds = append(conds, "school_id = "+arg(filter.SchoolID))
	}
	if filter.ActorID != "" {
		conds = append(conds, "actor_id = "+arg(filter.ActorID))
	}
	if filter.EntityType != "" {
		conds = append(conds, "entity_type = "+arg(filter.EntityType))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at <= "+arg(filter.To.UTC()))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var rows []auditRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := unpackAudit(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
