package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/rollup/internal/db"
	"github.com/alexanderramin/rollup/internal/domain"
)

// entityColumns is the canonical SELECT column list for entities.
const entityColumns = `id, kind, parent_id, campaign_id, name, segment, state, previous_state,
		budget_own, budget_total, actual_end_date, created_at, updated_at`

// SQLEntityRepo implements EntityRepo over database/sql. The same queries
// serve SQLite and Postgres; placeholders are rebound per dialect.
type SQLEntityRepo struct {
	db      db.DBTX
	dialect db.Dialect
}

// NewSQLEntityRepo creates a new SQLEntityRepo.
func NewSQLEntityRepo(conn db.DBTX, dialect db.Dialect) *SQLEntityRepo {
	return &SQLEntityRepo{db: conn, dialect: dialect}
}

func (r *SQLEntityRepo) Create(ctx context.Context, e *domain.Entity) error {
	snap, err := domain.MarshalSnapshot(e.PreviousState)
	if err != nil {
		return err
	}
	query := `INSERT INTO entities (id, kind, parent_id, campaign_id, name, segment, state, previous_state,
		budget_own, budget_total, actual_end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.dialect.Rebind(query),
		e.ID,
		string(e.Kind),
		nullableStringToValue(e.ParentID),
		nullableStringToValue(e.CampaignID),
		e.Name,
		e.Segment,
		string(e.State),
		snapshotValue(snap),
		nullableInt64ToValue(e.BudgetOwn),
		e.BudgetTotal,
		nullableTimeToString(e.ActualEndDate),
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

func (r *SQLEntityRepo) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = ?`
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	return e, nil
}

// LockForUpdate takes the row lock with SELECT ... FOR UPDATE on Postgres.
// SQLite transactions begin IMMEDIATE and already hold the database write
// lock, so there it only checks the row exists.
func (r *SQLEntityRepo) LockForUpdate(ctx context.Context, id string) error {
	query := `SELECT id FROM entities WHERE id = ?`
	if r.dialect == db.DialectPostgres {
		query += ` FOR UPDATE`
	}
	var got string
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), id).Scan(&got)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("entity %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("locking entity: %w", err)
	}
	return nil
}

func (r *SQLEntityRepo) Update(ctx context.Context, e *domain.Entity) error {
	snap, err := domain.MarshalSnapshot(e.PreviousState)
	if err != nil {
		return err
	}
	query := `UPDATE entities SET parent_id = ?, campaign_id = ?, name = ?, segment = ?, state = ?,
		previous_state = ?, budget_own = ?, budget_total = ?, actual_end_date = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		nullableStringToValue(e.ParentID),
		nullableStringToValue(e.CampaignID),
		e.Name,
		e.Segment,
		string(e.State),
		snapshotValue(snap),
		nullableInt64ToValue(e.BudgetOwn),
		e.BudgetTotal,
		nullableTimeToString(e.ActualEndDate),
		formatTime(e.UpdatedAt),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating entity: %w", err)
	}
	return requireOneRow(res, e.ID)
}

func (r *SQLEntityRepo) SaveSnapshot(ctx context.Context, id string, snap *domain.StateSnapshot) error {
	b, err := domain.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	query := `UPDATE entities SET previous_state = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), snapshotValue(b), id)
	if err != nil {
		return fmt.Errorf("saving state snapshot: %w", err)
	}
	return requireOneRow(res, id)
}

func (r *SQLEntityRepo) ListByParent(ctx context.Context, parentID string) ([]*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE parent_id = ? ORDER BY created_at, id`
	return r.list(ctx, "listing entities by parent", query, parentID)
}

func (r *SQLEntityRepo) ListByCampaign(ctx context.Context, campaignID string) ([]*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE campaign_id = ? ORDER BY created_at, id`
	return r.list(ctx, "listing entities by campaign", query, campaignID)
}

func (r *SQLEntityRepo) ListRoots(ctx context.Context) ([]*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE parent_id IS NULL ORDER BY created_at, id`
	return r.list(ctx, "listing root entities", query)
}

func (r *SQLEntityRepo) list(ctx context.Context, what, query string, args ...any) ([]*domain.Entity, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var out []*domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(s rowScanner) (*domain.Entity, error) {
	var e domain.Entity
	var kindStr, stateStr, createdAtStr, updatedAtStr string
	var parentID, campaignID, prevState, actualEnd sql.NullString
	var budgetOwn sql.NullInt64

	err := s.Scan(
		&e.ID, &kindStr, &parentID, &campaignID, &e.Name, &e.Segment, &stateStr, &prevState,
		&budgetOwn, &e.BudgetTotal, &actualEnd, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = domain.Kind(kindStr)
	e.State = domain.State(stateStr)
	e.ParentID = stringFromNull(parentID)
	e.CampaignID = stringFromNull(campaignID)
	e.BudgetOwn = int64FromNull(budgetOwn)
	e.ActualEndDate = parseNullableTime(actualEnd)

	if prevState.Valid {
		e.PreviousState, err = domain.UnmarshalSnapshot([]byte(prevState.String))
		if err != nil {
			return nil, err
		}
	}

	var parseErr error
	e.CreatedAt, parseErr = time.Parse(timestampLayout, createdAtStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	e.UpdatedAt, parseErr = time.Parse(timestampLayout, updatedAtStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &e, nil
}

func snapshotValue(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return nil
}
