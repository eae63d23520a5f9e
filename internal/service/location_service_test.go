package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"owl-location/internal/domain"
	"owl-location/internal/events"
	"owl-location/internal/query"
	"owl-location/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var strategies = []TreeStrategy{TreeRecursive, TreeFrontier}

func newLocations(repo repository.LocationsRepository, opts ...LocationOption) *LocationService {
	return NewLocationService(repo, zap.NewNop(), opts...)
}

func TestParseTreeStrategy(t *testing.T) {
	s, err := ParseTreeStrategy("")
	require.NoError(t, err)
	assert.Equal(t, TreeRecursive, s)

	s, err = ParseTreeStrategy("frontier")
	require.NoError(t, err)
	assert.Equal(t, TreeFrontier, s)

	_, err = ParseTreeStrategy("sql")
	assert.Error(t, err)
}

func TestGetTreeByID_EndToEnd(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			svc := newLocations(repository.NewMemoryLocationsRepo(), WithTreeStrategy(strategy))
			ctx := context.Background()

			root, err := svc.Create(ctx, repository.Patch{"name": "Floor 1", "building": "B"})
			require.NoError(t, err)
			c1, err := svc.Create(ctx, repository.Patch{"name": "Room 1", "parentId": root.ID})
			require.NoError(t, err)
			c2, err := svc.Create(ctx, repository.Patch{"name": "Room 2", "parentId": root.ID})
			require.NoError(t, err)

			tree, err := svc.GetTreeByID(ctx, root.ID)
			require.NoError(t, err)
			require.NotNil(t, tree)

			assert.Equal(t, root.ID, tree.ID)
			assert.Equal(t, []string{c1.ID, c2.ID}, childIDs(tree))
			for _, c := range tree.Children {
				assert.NotNil(t, c.Children)
				assert.Empty(t, c.Children)
			}

			b, err := json.Marshal(tree)
			require.NoError(t, err)
			assert.Contains(t, string(b), `"children":[]`)
		})
	}
}

func TestGetTreeByID_Shape(t *testing.T) {
	// 1 → {2, 3}, 3 → {4, 5}, 5 → {6}; 7 is another root
	rows := [][2]string{
		{"1", ""}, {"2", "1"}, {"3", "1"}, {"4", "3"}, {"5", "3"}, {"6", "5"}, {"7", ""},
	}

	var rendered []string
	for _, strategy := range strategies {
		svc := newLocations(fixture(t, rows...), WithTreeStrategy(strategy))

		tree, err := svc.GetTreeByID(context.Background(), "1")
		require.NoError(t, err)

		assert.Equal(t, 6, tree.Count(), strategy)
		assert.Equal(t, []string{"2", "3"}, childIDs(tree))
		assert.Equal(t, []string{"4", "5"}, childIDs(tree.Children[1]))
		assert.Equal(t, []string{"6"}, childIDs(tree.Children[1].Children[1]))

		b, err := json.Marshal(tree)
		require.NoError(t, err)
		rendered = append(rendered, string(b))
	}
	assert.Equal(t, rendered[0], rendered[1], "strategies must agree")
}

func TestGetTreeByID_MissingAndEmpty(t *testing.T) {
	for _, strategy := range strategies {
		spy := newSpyRepo(fixture(t, [2]string{"1", ""}))
		svc := newLocations(spy, WithTreeStrategy(strategy))

		tree, err := svc.GetTreeByID(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, tree)

		calls := spy.calls()
		tree, err = svc.GetTreeByID(context.Background(), "")
		require.NoError(t, err)
		assert.Nil(t, tree)
		assert.Equal(t, calls, spy.calls(), "empty id is not looked up")
	}
}

func TestGetTreeByID_RoundTrips(t *testing.T) {
	rows := [][2]string{{"1", ""}, {"2", "1"}, {"3", "1"}, {"4", "3"}}

	spy := newSpyRepo(fixture(t, rows...))
	_, err := newLocations(spy).GetTreeByID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 4, spy.findOne, "recursive: one lookup per node")
	assert.Equal(t, 0, spy.find)

	spy = newSpyRepo(fixture(t, rows...))
	_, err = newLocations(spy, WithTreeStrategy(TreeFrontier)).GetTreeByID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 1, spy.findOne)
	assert.Equal(t, 3, spy.find, "frontier: one query per level")
}

func TestGetTreeByID_CycleTerminates(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			repo := repository.NewMemoryLocationsRepo()
			repo.Insert(domain.Location{ID: "A", ParentID: strptr("B")})
			repo.Insert(domain.Location{ID: "B", ParentID: strptr("A")})
			svc := newLocations(repo, WithTreeStrategy(strategy))

			_, err := svc.GetTreeByID(context.Background(), "A")
			assert.ErrorIs(t, err, ErrCyclicHierarchy)

			self := repository.NewMemoryLocationsRepo()
			self.Insert(domain.Location{ID: "S", ParentID: strptr("S")})
			svc = newLocations(self, WithTreeStrategy(strategy))

			_, err = svc.GetTreeByID(context.Background(), "S")
			assert.ErrorIs(t, err, ErrCyclicHierarchy)
		})
	}
}

func TestGetTreeByID_MaxDepth(t *testing.T) {
	rows := [][2]string{{"0", ""}, {"1", "0"}, {"2", "1"}, {"3", "2"}}

	for _, strategy := range strategies {
		svc := newLocations(fixture(t, rows...), WithTreeStrategy(strategy), WithMaxDepth(2))
		_, err := svc.GetTreeByID(context.Background(), "0")
		assert.ErrorIs(t, err, ErrMaxDepthExceeded, strategy)

		svc = newLocations(fixture(t, rows...), WithTreeStrategy(strategy), WithMaxDepth(3))
		tree, err := svc.GetTreeByID(context.Background(), "0")
		require.NoError(t, err)
		assert.Equal(t, 4, tree.Count())
	}
}

func TestGetTreeByID_ContextCanceled(t *testing.T) {
	for _, strategy := range strategies {
		svc := newLocations(fixture(t, [2]string{"1", ""}, [2]string{"2", "1"}), WithTreeStrategy(strategy))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.GetTreeByID(ctx, "1")
		assert.ErrorIs(t, err, context.Canceled, strategy)
	}
}

func TestQueryAllRootTree_TotalIsFlatCount(t *testing.T) {
	rows := [][2]string{
		{"1", ""}, {"2", "1"}, {"3", "1"}, {"4", "3"}, {"5", ""}, {"6", "5"},
	}
	svc := newLocations(fixture(t, rows...))

	page, err := svc.QueryAllRootTree(context.Background(), ListRequest{WithRelationship: true}.Request())

	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "1", page.Items[0].ID)
	assert.Equal(t, 4, page.Items[0].Count())
	assert.Equal(t, []string{"6"}, childIDs(page.Items[1]))
}

func TestQueryAllRootTree_SkipsCyclicRecords(t *testing.T) {
	repo := fixture(t, [2]string{"1", ""}, [2]string{"2", "1"})
	repo.Insert(domain.Location{ID: "X", ParentID: strptr("Y")})
	repo.Insert(domain.Location{ID: "Y", ParentID: strptr("X")})
	svc := newLocations(repo)

	page, err := svc.QueryAllRootTree(context.Background(), query.Request{})

	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	ids := make([]string, 0, len(page.Items))
	for _, n := range page.Items {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestQueryAllRootTree_LogsSkippedLocationID(t *testing.T) {
	repo := fixture(t, [2]string{"1", ""})
	repo.Insert(domain.Location{ID: "X", ParentID: strptr("Y")})
	repo.Insert(domain.Location{ID: "Y", ParentID: strptr("X")})
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewLocationService(repo, zap.New(core))

	_, err := svc.QueryAllRootTree(context.Background(), query.Request{})
	require.NoError(t, err)

	skipped := logs.FilterMessage("Skipping cyclic location hierarchy").All()
	require.Len(t, skipped, 2)
	var ids []string
	for _, e := range skipped {
		ids = append(ids, e.ContextMap()["location_id"].(string))
	}
	assert.ElementsMatch(t, []string{"X", "Y"}, ids)
}

func TestQueryAllRootTree_AbortsOnStoreError(t *testing.T) {
	spy := newSpyRepo(fixture(t, [2]string{"1", ""}))
	svc := newLocations(spy)

	spy.err = errors.New("connection reset")
	_, err := svc.QueryAllRootTree(context.Background(), query.Request{})
	assert.Error(t, err)
}

func TestLocationService_PublishesEvents(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newLocations(repository.NewMemoryLocationsRepo(), WithPublisher(pub))
	ctx := context.Background()

	l, err := svc.Create(ctx, repository.Patch{"name": "A"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, l.ID, repository.Patch{"name": "B"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, "missing", repository.Patch{"name": "C"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, l.ID))

	assert.Equal(t, []events.Type{events.Created, events.Updated, events.Deleted}, pub.types())
	assert.Equal(t, "B", pub.events[1].Location.Name)
	assert.Nil(t, pub.events[2].Location)
}

func TestLocationService_PublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newLocations(repository.NewMemoryLocationsRepo(), WithPublisher(pub))

	l, err := svc.Create(context.Background(), repository.Patch{"name": "A"})
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.Len(t, pub.types(), 1)
}

func TestListRequest_Request(t *testing.T) {
	req := ListRequest{Search: "  "}.Request()
	assert.Empty(t, query.Groups(req.Where))

	req = ListRequest{WithRelationship: true}.Request()
	assert.Equal(t, []query.Group{{query.ParentIDField: query.IsNull{}}}, query.Groups(req.Where))

	req = ListRequest{Search: " A ", WithRelationship: true}.Request()
	groups := query.Groups(req.Where)
	require.Len(t, groups, len(SearchFields))
	for i, g := range groups {
		assert.Equal(t, query.ILike{Term: "A"}, g[SearchFields[i]])
		assert.Equal(t, query.IsNull{}, g[query.ParentIDField])
	}

	req = ListRequest{Search: "A"}.Request()
	for _, g := range query.Groups(req.Where) {
		assert.Len(t, g, 1)
	}
}
