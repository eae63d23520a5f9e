package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"owl-location/internal/domain"
	"owl-location/internal/query"

	"github.com/google/uuid"
)

// MemoryLocationsRepo: 用于 DB 未就绪时的联调 / 单元测试
// - IDs 使用 uuid
// - 删除时级联删除后代（与 ON DELETE CASCADE 一致）
// - 外键：parentId 必须指向已存在的记录
type MemoryLocationsRepo struct {
	mu sync.RWMutex

	rows map[string]*memoryLocation // id -> row
	seq  int64
	now  func() time.Time
}

type memoryLocation struct {
	loc domain.Location
	seq int64 // insertion order, final tiebreak
}

func NewMemoryLocationsRepo() *MemoryLocationsRepo {
	return &MemoryLocationsRepo{
		rows: map[string]*memoryLocation{},
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Insert stores l as-is, keeping its id and timestamps. Used to seed fixtures,
// including hierarchies the public write path would reject.
func (r *MemoryLocationsRepo) Insert(l domain.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = r.now()
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	l.Children = nil
	r.seq++
	r.rows[l.ID] = &memoryLocation{loc: l, seq: r.seq}
}

func (r *MemoryLocationsRepo) FindOne(_ context.Context, where query.Group, relations []string) (*domain.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items, err := r.findLocked(query.StoreQuery{Where: []query.Group{where}, Take: 1}, relations)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func (r *MemoryLocationsRepo) Find(_ context.Context, q query.StoreQuery, relations []string) ([]*domain.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLocked(q, relations)
}

func (r *MemoryLocationsRepo) Count(_ context.Context, where []query.Group) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched, err := r.matchLocked(where)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// FindAndCount reads page and total under one read lock.
func (r *MemoryLocationsRepo) FindAndCount(_ context.Context, q query.StoreQuery, relations []string) ([]*domain.Location, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched, err := r.matchLocked(q.Where)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.findLocked(q, relations)
	if err != nil {
		return nil, 0, err
	}
	return items, len(matched), nil
}

func (r *MemoryLocationsRepo) Save(_ context.Context, record Patch) (*domain.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var l domain.Location
	if err := r.applyLocked(&l, record); err != nil {
		return nil, err
	}
	l.ID = uuid.NewString()
	l.CreatedAt = r.now()
	l.UpdatedAt = l.CreatedAt
	r.seq++
	r.rows[l.ID] = &memoryLocation{loc: l, seq: r.seq}

	out := l
	return &out, nil
}

func (r *MemoryLocationsRepo) Update(_ context.Context, id string, patch Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || len(patch) == 0 {
		return nil
	}
	next := row.loc
	if err := r.applyLocked(&next, patch); err != nil {
		return err
	}
	next.UpdatedAt = r.now()
	row.loc = next
	return nil
}

// Delete removes id and, transitively, every row under it.
func (r *MemoryLocationsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return nil
	}
	doomed := map[string]bool{id: true}
	frontier := []string{id}
	for len(frontier) > 0 {
		var next []string
		for _, row := range r.rows {
			p := row.loc.ParentID
			if p == nil || doomed[row.loc.ID] {
				continue
			}
			for _, f := range frontier {
				if *p == f {
					doomed[row.loc.ID] = true
					next = append(next, row.loc.ID)
					break
				}
			}
		}
		frontier = next
	}
	for d := range doomed {
		delete(r.rows, d)
	}
	return nil
}

// ---- internals (caller holds r.mu) ----

func (r *MemoryLocationsRepo) matchLocked(where []query.Group) ([]*memoryLocation, error) {
	out := make([]*memoryLocation, 0, len(r.rows))
	for _, row := range r.rows {
		ok, err := query.MatchAny(where, row.loc.Field)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *MemoryLocationsRepo) findLocked(q query.StoreQuery, relations []string) ([]*domain.Location, error) {
	matched, err := r.matchLocked(q.Where)
	if err != nil {
		return nil, err
	}
	for _, o := range q.Order {
		if _, ok := (&domain.Location{}).Field(o.Field); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, o.Field)
		}
		if _, ok := query.ParseDirection(string(o.Direction)); !ok {
			return nil, fmt.Errorf("invalid order direction %q for %s", o.Direction, o.Field)
		}
	}
	sortMemoryLocations(matched, q.Order)

	start := q.Skip
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if q.Take > 0 && start+q.Take < end {
		end = start + q.Take
	}
	page := matched[start:end]

	items := make([]*domain.Location, 0, len(page))
	for _, row := range page {
		l := row.loc
		items = append(items, &l)
	}

	for _, rel := range relations {
		switch rel {
		case domain.RelationChildren:
			for _, l := range items {
				l.Children = r.childrenLocked(l.ID)
			}
		default:
			return nil, fmt.Errorf("unknown relation %q", rel)
		}
	}
	return items, nil
}

func (r *MemoryLocationsRepo) childrenLocked(parentID string) []*domain.Location {
	var rows []*memoryLocation
	for _, row := range r.rows {
		if row.loc.ParentID != nil && *row.loc.ParentID == parentID {
			rows = append(rows, row)
		}
	}
	sortMemoryLocations(rows, nil)
	out := make([]*domain.Location, 0, len(rows))
	for _, row := range rows {
		l := row.loc
		out = append(out, &l)
	}
	return out
}

func (r *MemoryLocationsRepo) applyLocked(l *domain.Location, p Patch) error {
	for field, raw := range p {
		var val *string
		switch v := raw.(type) {
		case nil:
		case string:
			val = &v
		case *string:
			if v != nil {
				s := *v
				val = &s
			}
		default:
			return fmt.Errorf("field %s: unsupported value type %T", field, raw)
		}

		switch field {
		case "parentId":
			if val != nil {
				if _, ok := r.rows[*val]; !ok {
					return fmt.Errorf("%w: %s", ErrInvalidParent, *val)
				}
			}
			l.ParentID = val
		case "building", "name", "number", "area":
			s := ""
			if val != nil {
				s = *val
			}
			switch field {
			case "building":
				l.Building = s
			case "name":
				l.Name = s
			case "number":
				l.Number = s
			case "area":
				l.Area = s
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
	}
	return nil
}

// sortMemoryLocations orders rows by order, then createdAt ASC and insertion
// order. NULLs sort last ascending, first descending, as in Postgres.
func sortMemoryLocations(rows []*memoryLocation, order query.Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i].loc, &rows[j].loc
		for _, o := range order {
			dir, _ := query.ParseDirection(string(o.Direction))
			c := compareField(a, b, o.Field)
			if dir == query.Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		if !order.Has("createdAt") {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c < 0
			}
		}
		return rows[i].seq < rows[j].seq
	})
}

func compareField(a, b *domain.Location, field string) int {
	switch field {
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	av, _ := a.Field(field)
	bv, _ := b.Field(field)
	switch {
	case av == nil && bv == nil:
		return 0
	case av == nil:
		return 1
	case bv == nil:
		return -1
	}
	return strings.Compare(*av, *bv)
}
