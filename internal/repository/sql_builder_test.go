package repository

import (
	"testing"

	"owl-location/internal/query"

	"github.com/lib/pq"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestBuildFindSQL_SearchRoots(t *testing.T) {
	q := query.Compile(query.Request{
		Where:      query.SearchWhere("A", []string{"name", "building"}, true),
		Pagination: &query.Pagination{Limit: 10, Offset: 2},
	})

	stmt, args, err := buildFindSQL(q)
	require.NoError(t, err)

	newGolden(t).Assert(t, "find_search_roots", []byte(stmt))
	assert.Equal(t, []any{"%A%", "%A%", 10, 20}, args)
}

func TestBuildFindSQL_ChildrenOrdered(t *testing.T) {
	q := query.StoreQuery{
		Where: []query.Group{{query.ParentIDField: query.In{Values: []string{"a", "b"}}}},
		Order: query.Order{{Field: "name", Direction: "desc"}},
	}

	stmt, args, err := buildFindSQL(q)
	require.NoError(t, err)

	newGolden(t).Assert(t, "find_children_ordered", []byte(stmt))
	assert.Equal(t, []any{pq.Array([]string{"a", "b"})}, args)
}

func TestBuildFindSQL_FirstPageHasNoOffset(t *testing.T) {
	q := query.Compile(query.Request{
		Order: query.Order{{Field: "updatedAt", Direction: query.Desc}},
	})

	stmt, args, err := buildFindSQL(q)
	require.NoError(t, err)

	newGolden(t).Assert(t, "find_unfiltered_first_page", []byte(stmt))
	assert.Equal(t, []any{10}, args)
}

func TestBuildCountSQL_EqualsNil(t *testing.T) {
	stmt, args, err := buildCountSQL([]query.Group{{
		"id":                query.Equals{Value: "x"},
		query.ParentIDField: query.Equals{Value: nil},
	}})
	require.NoError(t, err)

	newGolden(t).Assert(t, "count_equals_null", []byte(stmt))
	assert.Equal(t, []any{"x"}, args)
}

func TestBuildInsertSQL(t *testing.T) {
	stmt, args, err := buildInsertSQL(Patch{"name": "A 01", "building": "B", "parentId": nil})
	require.NoError(t, err)

	newGolden(t).Assert(t, "insert_location", []byte(stmt))
	assert.Equal(t, []any{"B", "A 01", nil}, args)
}

func TestBuildUpdateSQL(t *testing.T) {
	stmt, args, err := buildUpdateSQL("id-1", Patch{"name": "A 02", "area": "1F"})
	require.NoError(t, err)

	newGolden(t).Assert(t, "update_location", []byte(stmt))
	assert.Equal(t, []any{"1F", "A 02", "id-1"}, args)
}

func TestSQLBuilder_Rejections(t *testing.T) {
	_, _, err := buildFindSQL(query.StoreQuery{Where: []query.Group{{"colour": query.Equals{Value: "red"}}}})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, _, err = buildFindSQL(query.StoreQuery{Order: query.Order{{Field: "name; DROP TABLE", Direction: query.Asc}}})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, _, err = buildFindSQL(query.StoreQuery{Order: query.Order{{Field: "name", Direction: "sideways"}}})
	assert.Error(t, err)

	_, _, err = buildInsertSQL(Patch{"createdAt": "2020-01-01"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, _, err = buildUpdateSQL("id-1", Patch{"id": "other"})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestSQLBuilder_EdgeGroups(t *testing.T) {
	b := newSQLBuilder(locationColumns)
	where, err := b.where([]query.Group{{}, {query.ParentIDField: query.In{}}})
	require.NoError(t, err)
	assert.Equal(t, " WHERE (TRUE) OR (FALSE)", where)
	assert.Empty(t, b.args)

	b = newSQLBuilder(locationColumns)
	where, err = b.where(nil)
	require.NoError(t, err)
	assert.Equal(t, "", where)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now \\o/`, escapeLike(`50% off_now \o/`))

	b := newSQLBuilder(locationColumns)
	_, err := b.where([]query.Group{{"name": query.ILike{Term: "a_b"}}})
	require.NoError(t, err)
	assert.Equal(t, []any{`%a\_b%`}, b.args)
}

func TestSQLArg_UnwrapsStringPointers(t *testing.T) {
	s := "p"
	var nilPtr *string
	assert.Equal(t, "p", sqlArg(&s))
	assert.Nil(t, sqlArg(nilPtr))
	assert.Equal(t, 3, sqlArg(3))
}
