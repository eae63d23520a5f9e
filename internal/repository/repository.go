package repository

import (
	"context"

	"owl-location/internal/domain"
	"owl-location/internal/query"
)

// Patch is a partial record: field name → value. Only the fields present are
// written. A nil value writes NULL.
type Patch map[string]any

// Without returns a copy of p minus the given fields.
func (p Patch) Without(fields ...string) Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

var (
	ErrUnknownField         = query.ErrUnknownField
	ErrUnsupportedCondition = query.ErrUnsupportedCondition
)

// Repository is the port a store exposes to the services. Implementations
// own connectivity and retries; the services never retry.
//
// FindOne returns (nil, nil) when nothing matches. Update and Delete of a
// missing id are no-ops, not errors.
type Repository[T any] interface {
	FindOne(ctx context.Context, where query.Group, relations []string) (*T, error)
	Find(ctx context.Context, q query.StoreQuery, relations []string) ([]*T, error)
	Count(ctx context.Context, where []query.Group) (int, error)
	Save(ctx context.Context, record Patch) (*T, error)
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
}

// SnapshotReader is implemented by stores that can run the page read and the
// total count against one consistent snapshot.
type SnapshotReader[T any] interface {
	FindAndCount(ctx context.Context, q query.StoreQuery, relations []string) ([]*T, int, error)
}

// LocationsRepository Location Repository接口
type LocationsRepository = Repository[domain.Location]
