package repository

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"owl-location/internal/query"

	"github.com/lib/pq"
)

// columnMap maps query-visible field names to SQL columns. Anything not in
// the map is rejected, so field names never reach SQL unchecked.
type columnMap map[string]string

// sqlBuilder compiles predicate groups, ordering and pagination into
// parameterized Postgres SQL. Values are always bound ($n), never inlined.
type sqlBuilder struct {
	cols columnMap
	args []any
}

func newSQLBuilder(cols columnMap) *sqlBuilder {
	return &sqlBuilder{cols: cols}
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) column(field string) (string, error) {
	col, ok := b.cols[field]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return col, nil
}

// where compiles an OR-set of groups. The empty set compiles to no WHERE.
func (b *sqlBuilder) where(groups []query.Group) (string, error) {
	if len(groups) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		s, err := b.group(g)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return " WHERE " + strings.Join(parts, " OR "), nil
}

// group compiles one AND-group; fields in sorted order for stable SQL.
func (b *sqlBuilder) group(g query.Group) (string, error) {
	if len(g) == 0 {
		return "TRUE", nil
	}
	conds := make([]string, 0, len(g))
	for _, field := range g.Fields() {
		col, err := b.column(field)
		if err != nil {
			return "", err
		}
		switch c := g[field].(type) {
		case query.Equals:
			v := sqlArg(c.Value)
			if v == nil {
				conds = append(conds, col+" IS NULL")
				continue
			}
			conds = append(conds, col+" = "+b.bind(v))
		case query.ILike:
			conds = append(conds, col+" ILIKE "+b.bind("%"+escapeLike(c.Term)+"%"))
		case query.IsNull:
			conds = append(conds, col+" IS NULL")
		case query.In:
			if len(c.Values) == 0 {
				conds = append(conds, "FALSE")
				continue
			}
			conds = append(conds, col+" = ANY("+b.bind(pq.Array(c.Values))+")")
		default:
			return "", fmt.Errorf("%w: %T on %s", ErrUnsupportedCondition, c, field)
		}
	}
	return strings.Join(conds, " AND "), nil
}

// orderBy compiles the caller's ordering followed by the tiebreak fields the
// caller did not mention, so paging is deterministic.
func (b *sqlBuilder) orderBy(order query.Order, tiebreak ...string) (string, error) {
	parts := make([]string, 0, len(order)+len(tiebreak))
	for _, o := range order {
		col, err := b.column(o.Field)
		if err != nil {
			return "", err
		}
		dir, ok := query.ParseDirection(string(o.Direction))
		if !ok {
			return "", fmt.Errorf("invalid order direction %q for %s", o.Direction, o.Field)
		}
		parts = append(parts, col+" "+string(dir))
	}
	for _, f := range tiebreak {
		if order.Has(f) {
			continue
		}
		col, err := b.column(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, col+" ASC")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// limit compiles Take/Skip. Take 0 means unbounded.
func (b *sqlBuilder) limit(take, skip int) string {
	var s string
	if take > 0 {
		s += " LIMIT " + b.bind(take)
	}
	if skip > 0 {
		s += " OFFSET " + b.bind(skip)
	}
	return s
}

// assignments compiles a patch to "col = $n" pairs in sorted field order.
func (b *sqlBuilder) assignments(p Patch, writable columnMap) (cols []string, placeholders []string, err error) {
	fields := make([]string, 0, len(p))
	for f := range p {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		col, ok := writable[f]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownField, f)
		}
		cols = append(cols, col)
		placeholders = append(placeholders, b.bind(sqlArg(p[f])))
	}
	return cols, placeholders, nil
}

// escapeLike escapes LIKE wildcards so a search term matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// sqlArg unwraps string pointers; nil pointers become NULL.
func sqlArg(v any) any {
	switch x := v.(type) {
	case *string:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}
