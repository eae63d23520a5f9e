package query

import (
	"sort"
	"strings"
)

// ParentIDField is the adjacency-list column every hierarchical entity exposes.
const ParentIDField = "parentId"

// IDField is the store-assigned identifier field.
const IDField = "id"

// Direction 排序方向
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts ASC/DESC in any case.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Asc:
		return Asc, true
	case Desc:
		return Desc, true
	}
	return "", false
}

// OrderField is one "field → direction" entry. Order keeps entries in the
// order the caller supplied them.
type OrderField struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

type Order []OrderField

// Has reports whether field already appears in o.
func (o Order) Has(field string) bool {
	for _, f := range o {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Condition is a single field constraint inside a Group.
//
// Sealed: only the types in this package implement it, so store backends can
// switch over it exhaustively.
type Condition interface {
	condition()
}

// Equals matches field = Value. A nil Value behaves like IsNull.
type Equals struct {
	Value any
}

// ILike is a fuzzy match: case-insensitive substring of Term.
type ILike struct {
	Term string
}

// IsNull matches rows where the field is NULL.
type IsNull struct{}

// In matches rows whose field equals any of Values. An empty In matches nothing.
type In struct {
	Values []string
}

func (Equals) condition() {}
func (ILike) condition()  {}
func (IsNull) condition() {}
func (In) condition()     {}

// Group is a predicate group: every field constraint must hold (AND).
type Group map[string]Condition

// Fields returns the constrained field names in sorted order.
func (g Group) Fields() []string {
	out := make([]string, 0, len(g))
	for f := range g {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// With returns a copy of g with field constrained by c. g is not modified.
func (g Group) With(field string, c Condition) Group {
	out := make(Group, len(g)+1)
	for k, v := range g {
		out[k] = v
	}
	out[field] = c
	return out
}

// Where is the tagged predicate variant: Single(Group) | AnyOf([]Group).
// A nil Where matches every row.
type Where interface {
	where()
}

// Single is one predicate group.
type Single struct {
	Group Group
}

// AnyOf is an OR-set of predicate groups. An empty AnyOf matches every row.
type AnyOf struct {
	Groups []Group
}

func (Single) where() {}
func (AnyOf) where()  {}

// Groups flattens w into its OR-list of groups. The empty list means "no
// filtering".
func Groups(w Where) []Group {
	switch v := w.(type) {
	case nil:
		return []Group{}
	case Single:
		return []Group{v.Group}
	case *Single:
		if v == nil {
			return []Group{}
		}
		return []Group{v.Group}
	case AnyOf:
		return append([]Group{}, v.Groups...)
	case *AnyOf:
		if v == nil {
			return []Group{}
		}
		return append([]Group{}, v.Groups...)
	}
	return []Group{}
}

// Pagination as received from callers. Both values are loosely typed: ints,
// floats, json.Number and numeric strings are accepted and coerced.
type Pagination struct {
	Limit  any `json:"limit"`
	Offset any `json:"offset"`
}

// Request is a declarative query: filter, ordering, pagination.
type Request struct {
	Where      Where
	Order      Order
	Pagination *Pagination
}

// StoreQuery is the compiled form consumed by a repository's Find and Count.
//
// Take is the row cap; 0 means unbounded. Skip is the number of rows to
// discard before the first returned row.
type StoreQuery struct {
	Where []Group
	Take  int
	Skip  int
	Order Order
}
