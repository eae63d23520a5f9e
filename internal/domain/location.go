package domain

import (
	"time"
)

// Location 位置领域模型（对应 locations 表）
// Self-referencing: ParentID points at another Location, NULL for roots.
type Location struct {
	ID        string    `db:"id" json:"id"`
	Building  string    `db:"building" json:"building"`
	Name      string    `db:"name" json:"name"`
	Number    string    `db:"number" json:"number"`
	Area      string    `db:"area" json:"area"`
	ParentID  *string   `db:"parent_id" json:"parentId"` // nullable, FK locations(id) ON DELETE CASCADE
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	// Children is only loaded when the "children" relation is requested.
	Children []*Location `db:"-" json:"children,omitempty"`
}

// RelationChildren names the one-to-many self relation.
const RelationChildren = "children"

// IsRoot reports whether l has no parent.
func (l *Location) IsRoot() bool {
	return l.ParentID == nil
}

// Field returns the text value of a query-visible field; nil is NULL.
// ok is false for names Location does not expose.
func (l *Location) Field(name string) (value *string, ok bool) {
	switch name {
	case "id":
		return &l.ID, true
	case "building":
		return &l.Building, true
	case "name":
		return &l.Name, true
	case "number":
		return &l.Number, true
	case "area":
		return &l.Area, true
	case "parentId":
		return l.ParentID, true
	case "createdAt":
		s := l.CreatedAt.UTC().Format(time.RFC3339Nano)
		return &s, true
	case "updatedAt":
		s := l.UpdatedAt.UTC().Format(time.RFC3339Nano)
		return &s, true
	}
	return nil, false
}

// LocationNode is a Location with its materialized subtree. Children is never
// nil: leaves carry an empty slice.
type LocationNode struct {
	Location
	Children []*LocationNode `json:"children"`
}

// NewLocationNode copies l into a node with no children yet.
func NewLocationNode(l *Location) *LocationNode {
	n := &LocationNode{Location: *l, Children: []*LocationNode{}}
	n.Location.Children = nil
	return n
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *LocationNode) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Walk visits n and its descendants depth-first, pre-order.
func (n *LocationNode) Walk(fn func(node *LocationNode, depth int)) {
	n.walk(fn, 0)
}

func (n *LocationNode) walk(fn func(node *LocationNode, depth int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}
