package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"owl-location/internal/domain"
	"owl-location/internal/query"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrInvalidParent is returned when a write references a parentId that does
// not exist (foreign key violation).
var ErrInvalidParent = errors.New("parent location does not exist")

const (
	locationsTable   = "locations"
	locationsColumns = "id::text, building, name, number, area, parent_id::text, created_at, updated_at"

	pqForeignKeyViolation = "23503"
)

// locationColumns: query-visible fields → columns.
var locationColumns = columnMap{
	"id":        "id",
	"building":  "building",
	"name":      "name",
	"number":    "number",
	"area":      "area",
	"parentId":  "parent_id",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// locationWritable: fields a Patch may set. id and timestamps are store-owned.
var locationWritable = columnMap{
	"building": "building",
	"name":     "name",
	"number":   "number",
	"area":     "area",
	"parentId": "parent_id",
}

// uuidFields are stored as uuid; comparing them with non-uuid text is an
// error in Postgres rather than a miss.
var uuidFields = map[string]bool{query.IDField: true, query.ParentIDField: true}

// locationTiebreak keeps ordering stable and doubles as the children order.
var locationTiebreak = []string{"createdAt", "id"}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresLocationsRepository locations 表的 Repository 实现
type PostgresLocationsRepository struct {
	db            *sql.DB
	snapshotReads bool
}

// PostgresOption configures a PostgresLocationsRepository.
type PostgresOption func(*PostgresLocationsRepository)

// WithSnapshotReads makes FindAndCount read the page and the total inside one
// REPEATABLE READ, read-only transaction. Disabled, the two reads are
// independent round-trips and may disagree under concurrent writes.
func WithSnapshotReads(enabled bool) PostgresOption {
	return func(r *PostgresLocationsRepository) {
		r.snapshotReads = enabled
	}
}

func NewPostgresLocationsRepository(db *sql.DB, opts ...PostgresOption) *PostgresLocationsRepository {
	r := &PostgresLocationsRepository{db: db, snapshotReads: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ============================================
// Read operations
// ============================================

// FindOne returns the first row matching where, or (nil, nil). A uuid field
// compared with text that is not a uuid matches nothing.
func (r *PostgresLocationsRepository) FindOne(ctx context.Context, where query.Group, relations []string) (*domain.Location, error) {
	if !uuidComparable(where) {
		return nil, nil
	}
	items, err := r.find(ctx, r.db, query.StoreQuery{Where: []query.Group{where}, Take: 1}, relations)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// uuidComparable reports whether every Equals/In on a uuid field carries
// values Postgres can cast to uuid.
func uuidComparable(g query.Group) bool {
	for field, c := range g {
		if !uuidFields[field] {
			continue
		}
		switch v := c.(type) {
		case query.Equals:
			if s, ok := v.Value.(string); ok && !isUUID(s) {
				return false
			}
		case query.In:
			for _, s := range v.Values {
				if !isUUID(s) {
					return false
				}
			}
		}
	}
	return true
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func (r *PostgresLocationsRepository) Find(ctx context.Context, q query.StoreQuery, relations []string) ([]*domain.Location, error) {
	return r.find(ctx, r.db, q, relations)
}

func (r *PostgresLocationsRepository) Count(ctx context.Context, where []query.Group) (int, error) {
	return r.count(ctx, r.db, where)
}

// FindAndCount reads a page and the unbounded total for the same predicates.
func (r *PostgresLocationsRepository) FindAndCount(ctx context.Context, q query.StoreQuery, relations []string) ([]*domain.Location, int, error) {
	if !r.snapshotReads {
		items, err := r.find(ctx, r.db, q, relations)
		if err != nil {
			return nil, 0, err
		}
		total, err := r.count(ctx, r.db, q.Where)
		if err != nil {
			return nil, 0, err
		}
		return items, total, nil
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin snapshot read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	items, err := r.find(ctx, tx, q, relations)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.count(ctx, tx, q.Where)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit snapshot read: %w", err)
	}
	return items, total, nil
}

func (r *PostgresLocationsRepository) find(ctx context.Context, q querier, sq query.StoreQuery, relations []string) ([]*domain.Location, error) {
	stmt, args, err := buildFindSQL(sq)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.Location, 0)
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rel := range relations {
		switch rel {
		case domain.RelationChildren:
			if err := r.attachChildren(ctx, q, items); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown relation %q", rel)
		}
	}
	return items, nil
}

// attachChildren loads the direct children of every parent with one query.
func (r *PostgresLocationsRepository) attachChildren(ctx context.Context, q querier, parents []*domain.Location) error {
	if len(parents) == 0 {
		return nil
	}
	ids := make([]string, 0, len(parents))
	for _, p := range parents {
		ids = append(ids, p.ID)
	}
	children, err := r.find(ctx, q, query.StoreQuery{
		Where: []query.Group{{query.ParentIDField: query.In{Values: ids}}},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to load children: %w", err)
	}

	byParent := make(map[string][]*domain.Location, len(parents))
	for _, c := range children {
		if c.ParentID == nil {
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}
	for _, p := range parents {
		p.Children = byParent[p.ID]
		if p.Children == nil {
			p.Children = []*domain.Location{}
		}
	}
	return nil
}

func (r *PostgresLocationsRepository) count(ctx context.Context, q querier, where []query.Group) (int, error) {
	stmt, args, err := buildCountSQL(where)
	if err != nil {
		return 0, err
	}
	var total int
	if err := q.QueryRowContext(ctx, stmt, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count locations: %w", err)
	}
	return total, nil
}

// ============================================
// Write operations
// ============================================

// Save inserts a row; the store assigns id and timestamps.
func (r *PostgresLocationsRepository) Save(ctx context.Context, record Patch) (*domain.Location, error) {
	stmt, args, err := buildInsertSQL(record)
	if err != nil {
		return nil, err
	}
	l, err := scanLocation(r.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", mapPQError(err))
	}
	return l, nil
}

// Update applies a partial update. Updating a missing id changes nothing.
func (r *PostgresLocationsRepository) Update(ctx context.Context, id string, patch Patch) error {
	if len(patch) == 0 {
		return nil
	}
	stmt, args, err := buildUpdateSQL(id, patch)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to update location: %w", mapPQError(err))
	}
	return nil
}

// Delete removes a row; descendants go with it (ON DELETE CASCADE).
func (r *PostgresLocationsRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+locationsTable+` WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	return nil
}

// ============================================
// SQL
// ============================================

func buildFindSQL(q query.StoreQuery) (string, []any, error) {
	b := newSQLBuilder(locationColumns)
	where, err := b.where(q.Where)
	if err != nil {
		return "", nil, err
	}
	order, err := b.orderBy(q.Order, locationTiebreak...)
	if err != nil {
		return "", nil, err
	}
	stmt := "SELECT " + locationsColumns + " FROM " + locationsTable + where + order + b.limit(q.Take, q.Skip)
	return stmt, b.args, nil
}

func buildCountSQL(where []query.Group) (string, []any, error) {
	b := newSQLBuilder(locationColumns)
	w, err := b.where(where)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + locationsTable + w, b.args, nil
}

func buildInsertSQL(record Patch) (string, []any, error) {
	b := newSQLBuilder(locationColumns)
	cols, placeholders, err := b.assignments(record, locationWritable)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "INSERT INTO " + locationsTable + " DEFAULT VALUES RETURNING " + locationsColumns, nil, nil
	}
	stmt := "INSERT INTO " + locationsTable + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") RETURNING " + locationsColumns
	return stmt, b.args, nil
}

func buildUpdateSQL(id string, patch Patch) (string, []any, error) {
	b := newSQLBuilder(locationColumns)
	cols, placeholders, err := b.assignments(patch, locationWritable)
	if err != nil {
		return "", nil, err
	}
	sets := make([]string, 0, len(cols)+1)
	for i, col := range cols {
		sets = append(sets, col+" = "+placeholders[i])
	}
	sets = append(sets, "updated_at = now()")
	stmt := "UPDATE " + locationsTable + " SET " + strings.Join(sets, ", ") + " WHERE id = " + b.bind(id)
	return stmt, b.args, nil
}

func scanLocation(s rowScanner) (*domain.Location, error) {
	var l domain.Location
	var parentID sql.NullString
	if err := s.Scan(
		&l.ID,
		&l.Building,
		&l.Name,
		&l.Number,
		&l.Area,
		&parentID,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if parentID.Valid {
		p := parentID.String
		l.ParentID = &p
	}
	return &l, nil
}

func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation {
		return fmt.Errorf("%w: %w", ErrInvalidParent, err)
	}
	return err
}
