package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"owl-location/internal/domain"
	"owl-location/internal/events"
	"owl-location/internal/query"
	"owl-location/internal/repository"
)

// spyRepo counts round-trips and records the last arguments. It wraps the
// memory repository and hides FindAndCount.
type spyRepo struct {
	inner *repository.MemoryLocationsRepo

	findOne, find, count, save, update, del int

	lastWhere query.Group
	lastPatch repository.Patch
	lastQuery query.StoreQuery

	err error
}

func newSpyRepo(inner *repository.MemoryLocationsRepo) *spyRepo {
	return &spyRepo{inner: inner}
}

func (s *spyRepo) calls() int {
	return s.findOne + s.find + s.count + s.save + s.update + s.del
}

func (s *spyRepo) FindOne(ctx context.Context, where query.Group, relations []string) (*domain.Location, error) {
	s.findOne++
	s.lastWhere = where
	if s.err != nil {
		return nil, s.err
	}
	return s.inner.FindOne(ctx, where, relations)
}

func (s *spyRepo) Find(ctx context.Context, q query.StoreQuery, relations []string) ([]*domain.Location, error) {
	s.find++
	s.lastQuery = q
	if s.err != nil {
		return nil, s.err
	}
	return s.inner.Find(ctx, q, relations)
}

func (s *spyRepo) Count(ctx context.Context, where []query.Group) (int, error) {
	s.count++
	if s.err != nil {
		return 0, s.err
	}
	return s.inner.Count(ctx, where)
}

func (s *spyRepo) Save(ctx context.Context, record repository.Patch) (*domain.Location, error) {
	s.save++
	s.lastPatch = record
	if s.err != nil {
		return nil, s.err
	}
	return s.inner.Save(ctx, record)
}

func (s *spyRepo) Update(ctx context.Context, id string, patch repository.Patch) error {
	s.update++
	s.lastPatch = patch
	if s.err != nil {
		return s.err
	}
	return s.inner.Update(ctx, id, patch)
}

func (s *spyRepo) Delete(ctx context.Context, id string) error {
	s.del++
	if s.err != nil {
		return s.err
	}
	return s.inner.Delete(ctx, id)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func strptr(s string) *string { return &s }

// fixture inserts rows in order with increasing created_at. Each entry is
// {id, parentID}; "" means root.
func fixture(t *testing.T, rows ...[2]string) *repository.MemoryLocationsRepo {
	t.Helper()
	r := repository.NewMemoryLocationsRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, row := range rows {
		l := domain.Location{
			ID:        row[0],
			Building:  "B",
			Name:      "Location " + row[0],
			Number:    fmt.Sprintf("%02d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if row[1] != "" {
			l.ParentID = strptr(row[1])
		}
		r.Insert(l)
	}
	return r
}

func childIDs(n *domain.LocationNode) []string {
	out := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c.ID)
	}
	return out
}
