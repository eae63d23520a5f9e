package service

import (
	"context"
	"fmt"

	"owl-location/internal/domain"
	"owl-location/internal/query"
)

// TreeStrategy selects how a subtree is fetched from the store.
type TreeStrategy string

const (
	// TreeRecursive fetches one node (with its children relation) per round-trip, depth-first.
	TreeRecursive TreeStrategy = "recursive"
	// TreeFrontier fetches one whole level per round-trip with parentId IN (...).
	TreeFrontier TreeStrategy = "frontier"
)

// DefaultMaxDepth bounds how many levels below the root are expanded.
const DefaultMaxDepth = 256

func ParseTreeStrategy(s string) (TreeStrategy, error) {
	switch TreeStrategy(s) {
	case "", TreeRecursive:
		return TreeRecursive, nil
	case TreeFrontier:
		return TreeFrontier, nil
	}
	return "", fmt.Errorf("unknown tree strategy %q", s)
}

var withChildren = &FindOptions{Relations: []string{domain.RelationChildren}}

// expandRecursive materializes id depth-first. path holds the ids on the
// current descent; meeting one again means the parent chain loops.
func (s *LocationService) expandRecursive(ctx context.Context, id string, path map[string]bool, depth int) (*domain.LocationNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path[id] {
		return nil, fmt.Errorf("%w: location %s is its own ancestor", ErrCyclicHierarchy, id)
	}
	if depth > s.maxDepth {
		return nil, fmt.Errorf("%w: deeper than %d below the root", ErrMaxDepthExceeded, s.maxDepth)
	}

	l, err := s.FindByID(ctx, id, withChildren)
	if err != nil {
		return nil, err
	}
	if l == nil {
		// deleted since its parent was read
		return nil, nil
	}

	node := domain.NewLocationNode(l)
	path[id] = true
	defer delete(path, id)

	for _, c := range l.Children {
		child, err := s.expandRecursive(ctx, c.ID, path, depth+1)
		if err != nil {
			return nil, err
		}
		if child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node, nil
}

// expandFrontier materializes id breadth-first, one query per level. Children
// come back ordered like the children relation, so grouping them by parent
// keeps the same per-parent order as expandRecursive.
func (s *LocationService) expandFrontier(ctx context.Context, id string) (*domain.LocationNode, error) {
	root, err := s.FindByID(ctx, id, nil)
	if err != nil || root == nil {
		return nil, err
	}

	rootNode := domain.NewLocationNode(root)
	seen := map[string]bool{root.ID: true}
	level := []*domain.LocationNode{rootNode}

	for depth := 1; len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		byID := make(map[string]*domain.LocationNode, len(level))
		ids := make([]string, 0, len(level))
		for _, n := range level {
			byID[n.ID] = n
			ids = append(ids, n.ID)
		}

		children, err := s.repo.Find(ctx, query.StoreQuery{
			Where: []query.Group{{query.ParentIDField: query.In{Values: ids}}},
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load level %d under %s: %w", depth, id, err)
		}
		if len(children) == 0 {
			break
		}
		if depth > s.maxDepth {
			return nil, fmt.Errorf("%w: deeper than %d below the root", ErrMaxDepthExceeded, s.maxDepth)
		}

		next := make([]*domain.LocationNode, 0, len(children))
		for _, c := range children {
			if seen[c.ID] {
				return nil, fmt.Errorf("%w: location %s is its own ancestor", ErrCyclicHierarchy, c.ID)
			}
			seen[c.ID] = true

			if c.ParentID == nil || byID[*c.ParentID] == nil {
				continue
			}
			parent := byID[*c.ParentID]
			n := domain.NewLocationNode(c)
			parent.Children = append(parent.Children, n)
			next = append(next, n)
		}
		level = next
	}
	return rootNode, nil
}
