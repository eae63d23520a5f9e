package repository

import (
	"context"
	"testing"
	"time"

	"owl-location/internal/domain"
	"owl-location/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

// seedMemory builds 1 → {2, 3}, 3 → {4}, plus a second root 5.
func seedMemory(t *testing.T) *MemoryLocationsRepo {
	t.Helper()
	r := NewMemoryLocationsRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.Insert(domain.Location{ID: "1", Building: "B", Name: "Floor 1", CreatedAt: base})
	r.Insert(domain.Location{ID: "2", Building: "B", Name: "Room A", ParentID: strptr("1"), CreatedAt: base.Add(time.Second)})
	r.Insert(domain.Location{ID: "3", Building: "B", Name: "Room b", ParentID: strptr("1"), CreatedAt: base.Add(2 * time.Second)})
	r.Insert(domain.Location{ID: "4", Building: "B", Name: "Bed 1", ParentID: strptr("3"), CreatedAt: base.Add(3 * time.Second)})
	r.Insert(domain.Location{ID: "5", Building: "Annex", Name: "Lobby", CreatedAt: base.Add(4 * time.Second)})
	return r
}

func ids(items []*domain.Location) []string {
	out := make([]string, 0, len(items))
	for _, l := range items {
		out = append(out, l.ID)
	}
	return out
}

func TestMemory_FindRootsWithChildren(t *testing.T) {
	r := seedMemory(t)

	items, err := r.Find(context.Background(), query.StoreQuery{
		Where: []query.Group{{query.ParentIDField: query.IsNull{}}},
	}, []string{domain.RelationChildren})

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "5"}, ids(items))
	assert.Equal(t, []string{"2", "3"}, ids(items[0].Children))
	assert.NotNil(t, items[1].Children)
	assert.Empty(t, items[1].Children)
}

func TestMemory_SearchIsCaseInsensitive(t *testing.T) {
	r := seedMemory(t)

	items, err := r.Find(context.Background(), query.StoreQuery{
		Where: query.CompileSearch("ROOM", []string{"name", "building"}, false),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(items))
}

func TestMemory_OrderAndPaging(t *testing.T) {
	r := seedMemory(t)
	ctx := context.Background()

	items, err := r.Find(ctx, query.StoreQuery{
		Order: query.Order{{Field: "name", Direction: query.Desc}},
		Take:  2,
		Skip:  1,
	}, nil)
	require.NoError(t, err)
	// names desc: Room b, Room A, Lobby, Floor 1, Bed 1
	assert.Equal(t, []string{"2", "5"}, ids(items))

	items, err = r.Find(ctx, query.StoreQuery{Take: 10, Skip: 10}, nil)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = r.Find(ctx, query.StoreQuery{Order: query.Order{{Field: "colour", Direction: query.Asc}}}, nil)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestMemory_FindAndCount(t *testing.T) {
	r := seedMemory(t)

	items, total, err := r.FindAndCount(context.Background(), query.StoreQuery{
		Where: []query.Group{{query.ParentIDField: query.Equals{Value: "1"}}},
		Take:  1,
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(items))
	assert.Equal(t, 2, total)
}

func TestMemory_SaveUpdate(t *testing.T) {
	r := seedMemory(t)
	ctx := context.Background()

	created, err := r.Save(ctx, Patch{"name": "Room C", "building": "B", "parentId": "1"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	require.NoError(t, r.Update(ctx, created.ID, Patch{"name": "Room D", "parentId": nil}))

	got, err := r.FindOne(ctx, query.Group{"id": query.Equals{Value: created.ID}}, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Room D", got.Name)
	assert.Nil(t, got.ParentID)
	assert.Equal(t, "B", got.Building)

	// missing id: no-op
	require.NoError(t, r.Update(ctx, "nope", Patch{"name": "x"}))

	_, err = r.Save(ctx, Patch{"name": "Orphan", "parentId": "nope"})
	assert.ErrorIs(t, err, ErrInvalidParent)

	_, err = r.Save(ctx, Patch{"colour": "red"})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestMemory_DeleteCascades(t *testing.T) {
	r := seedMemory(t)
	ctx := context.Background()

	require.NoError(t, r.Delete(ctx, "1"))

	total, err := r.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	got, err := r.FindOne(ctx, query.Group{"id": query.Equals{Value: "4"}}, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, r.Delete(ctx, "missing"))
}

func TestMemory_DeleteTerminatesOnCycle(t *testing.T) {
	r := NewMemoryLocationsRepo()
	r.Insert(domain.Location{ID: "A", ParentID: strptr("B")})
	r.Insert(domain.Location{ID: "B", ParentID: strptr("A")})
	r.Insert(domain.Location{ID: "C"})

	require.NoError(t, r.Delete(context.Background(), "A"))

	total, err := r.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	r := seedMemory(t)
	ctx := context.Background()

	got, err := r.FindOne(ctx, query.Group{"id": query.Equals{Value: "1"}}, nil)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := r.FindOne(ctx, query.Group{"id": query.Equals{Value: "1"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Floor 1", again.Name)
}
