package service

import (
	"context"
	"errors"
	"strings"

	"owl-location/internal/domain"
	"owl-location/internal/events"
	"owl-location/internal/logger"
	"owl-location/internal/metrics"
	"owl-location/internal/query"
	"owl-location/internal/repository"

	"go.uber.org/zap"
)

// SearchFields are matched by the free-text search, one OR-branch each.
var SearchFields = []string{"name", "building", "number", "area"}

// OrderableFields may appear in a list request's order.
var OrderableFields = []string{"name", "building", "number", "area", "createdAt", "updatedAt"}

// LocationService 位置服务：CRUD + 树形查询
type LocationService struct {
	*BaseService[domain.Location]

	publisher events.Publisher
	strategy  TreeStrategy
	maxDepth  int
}

type LocationOption func(*LocationService)

func WithTreeStrategy(strategy TreeStrategy) LocationOption {
	return func(s *LocationService) { s.strategy = strategy }
}

func WithMaxDepth(depth int) LocationOption {
	return func(s *LocationService) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithPublisher sends a change event after every successful mutation.
func WithPublisher(p events.Publisher) LocationOption {
	return func(s *LocationService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// NewLocationService 创建 LocationService 实例
func NewLocationService(repo repository.LocationsRepository, logger *zap.Logger, opts ...LocationOption) *LocationService {
	s := &LocationService{
		BaseService: NewBaseService[domain.Location](repo, logger),
		publisher:   events.NopPublisher{},
		strategy:    TreeRecursive,
		maxDepth:    DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LocationService) Strategy() TreeStrategy { return s.strategy }

// ============================================
// Mutations (publish change events)
// ============================================

func (s *LocationService) Create(ctx context.Context, record repository.Patch) (*domain.Location, error) {
	l, err := s.BaseService.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Created, l.ID, l)
	return l, nil
}

func (s *LocationService) Update(ctx context.Context, id string, patch repository.Patch) (*domain.Location, error) {
	l, err := s.BaseService.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if l != nil {
		s.publish(ctx, events.Updated, id, l)
	}
	return l, nil
}

func (s *LocationService) Delete(ctx context.Context, id string) error {
	if err := s.BaseService.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Deleted, id, nil)
	return nil
}

// publish never fails the mutation; the row is already written.
func (s *LocationService) publish(ctx context.Context, t events.Type, id string, l *domain.Location) {
	if err := s.publisher.Publish(ctx, events.NewEvent(t, id, l)); err != nil {
		s.logger.Warn("Failed to publish location event",
			zap.String("type", string(t)),
			logger.LocationID(id),
			zap.Error(err),
		)
	}
}

// ============================================
// Tree materializer
// ============================================

// GetTreeByID returns the subtree rooted at id, or nil when id does not
// exist. Children keep the store's children-relation order; leaves have an
// empty Children slice.
func (s *LocationService) GetTreeByID(ctx context.Context, id string) (*domain.LocationNode, error) {
	var node *domain.LocationNode
	var err error
	switch s.strategy {
	case TreeFrontier:
		node, err = s.expandFrontier(ctx, id)
	default:
		node, err = s.expandRecursive(ctx, id, map[string]bool{}, 0)
	}

	metrics.TreesMaterialized.WithLabelValues(string(s.strategy), metrics.Status(err)).Inc()
	if err != nil {
		return nil, err
	}
	if node != nil {
		metrics.TreeNodes.WithLabelValues(string(s.strategy)).Observe(float64(node.Count()))
	}
	return node, nil
}

// QueryAllRootTree pages the records matching req and expands each into its
// subtree, in page order. Total is the flat match count of req, not the
// number of nodes returned. A record whose hierarchy loops is logged and
// left out; any other failure aborts.
func (s *LocationService) QueryAllRootTree(ctx context.Context, req query.Request) (*Page[domain.LocationNode], error) {
	page, err := s.Query(ctx, req, nil)
	if err != nil {
		return nil, err
	}

	items := make([]*domain.LocationNode, 0, len(page.Items))
	for _, l := range page.Items {
		node, err := s.GetTreeByID(ctx, l.ID)
		if errors.Is(err, ErrCyclicHierarchy) {
			s.logger.Warn("Skipping cyclic location hierarchy",
				logger.LocationID(l.ID),
				zap.Error(err),
			)
			continue
		}
		if err != nil {
			s.logger.Error("QueryAllRootTree failed", logger.LocationID(l.ID), zap.Error(err))
			return nil, err
		}
		if node != nil {
			items = append(items, node)
		}
	}
	return &Page[domain.LocationNode]{Items: items, Total: page.Total}, nil
}

// ============================================
// List requests
// ============================================

// ListRequest is a list call as the transport receives it.
type ListRequest struct {
	Search           string
	WithRelationship bool
	Order            query.Order
	Pagination       *query.Pagination
}

// Request compiles l to a query.Request. A search matches any of
// SearchFields; WithRelationship restricts the match to roots, with or
// without a search term.
func (l ListRequest) Request() query.Request {
	term := strings.TrimSpace(l.Search)
	where := query.SearchWhere(term, SearchFields, l.WithRelationship)
	if where == nil && l.WithRelationship {
		// tree listings page over roots even with no search term; an empty
		// where would page every row and nest descendants twice
		where = query.RootsOnly()
	}
	return query.Request{Where: where, Order: l.Order, Pagination: l.Pagination}
}
