package service

import (
	"context"
	"fmt"

	"owl-location/internal/logger"
	"owl-location/internal/query"
	"owl-location/internal/repository"

	"go.uber.org/zap"
)

// readOnlyFields are owned by the store; callers can never write them.
var readOnlyFields = []string{query.IDField, "createdAt", "updatedAt"}

// FindOptions narrows FindByID. Where is ANDed with the id constraint.
type FindOptions struct {
	Where     query.Group
	Relations []string
}

// QueryOptions are forwarded to the page read.
type QueryOptions struct {
	Relations []string
}

// Page 分页结果; Total counts every match, not just Items.
type Page[T any] struct {
	Items []*T `json:"items"`
	Total int  `json:"total"`
}

// BaseService is the generic CRUD + paged query surface over a Repository.
type BaseService[T any] struct {
	repo   repository.Repository[T]
	logger *zap.Logger
}

func NewBaseService[T any](repo repository.Repository[T], logger *zap.Logger) *BaseService[T] {
	return &BaseService[T]{repo: repo, logger: logger}
}

// Create persists record and returns the stored entity with its
// store-assigned id and timestamps.
func (s *BaseService[T]) Create(ctx context.Context, record repository.Patch) (*T, error) {
	created, err := s.repo.Save(ctx, record.Without(readOnlyFields...))
	if err != nil {
		s.logger.Error("Create failed", zap.Error(err))
		return nil, fmt.Errorf("failed to create: %w", err)
	}
	return created, nil
}

// Update applies a partial update and re-reads the row. The result is nil
// when no row has id; callers check existence first.
func (s *BaseService[T]) Update(ctx context.Context, id string, patch repository.Patch) (*T, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidArgument)
	}
	if err := s.repo.Update(ctx, id, patch.Without(readOnlyFields...)); err != nil {
		s.logger.Error("Update failed", logger.LocationID(id), zap.Error(err))
		return nil, fmt.Errorf("failed to update: %w", err)
	}
	return s.FindByID(ctx, id, nil)
}

// Delete removes id. Deleting a missing id is not an error.
func (s *BaseService[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidArgument)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("Delete failed", logger.LocationID(id), zap.Error(err))
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// FindByID returns the entity or nil. An empty id returns nil without
// touching the store.
func (s *BaseService[T]) FindByID(ctx context.Context, id string, opts *FindOptions) (*T, error) {
	if id == "" {
		return nil, nil
	}
	var extra query.Group
	var relations []string
	if opts != nil {
		extra, relations = opts.Where, opts.Relations
	}
	where := extra.With(query.IDField, query.Equals{Value: id})

	found, err := s.repo.FindOne(ctx, where, relations)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", id, err)
	}
	return found, nil
}

// Query reads one page plus the total number of matches.
func (s *BaseService[T]) Query(ctx context.Context, req query.Request, opts *QueryOptions) (*Page[T], error) {
	q := query.Compile(req)
	var relations []string
	if opts != nil {
		relations = opts.Relations
	}

	if snap, ok := s.repo.(repository.SnapshotReader[T]); ok {
		items, total, err := snap.FindAndCount(ctx, q, relations)
		if err != nil {
			s.logger.Error("Query failed", zap.Error(err))
			return nil, fmt.Errorf("failed to query: %w", err)
		}
		return &Page[T]{Items: items, Total: total}, nil
	}

	items, err := s.repo.Find(ctx, q, relations)
	if err != nil {
		s.logger.Error("Query failed", zap.Error(err))
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	total, err := s.repo.Count(ctx, q.Where)
	if err != nil {
		s.logger.Error("Count failed", zap.Error(err))
		return nil, fmt.Errorf("failed to count: %w", err)
	}
	return &Page[T]{Items: items, Total: total}, nil
}
