package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownField         = errors.New("unknown field")
	ErrUnsupportedCondition = errors.New("unsupported condition")
)

// Getter resolves a field of a row. A nil value is SQL NULL; ok=false means
// the row has no such field.
type Getter func(field string) (value *string, ok bool)

// MatchAny evaluates an OR-set of groups in memory. The empty set matches.
func MatchAny(groups []Group, get Getter) (bool, error) {
	if len(groups) == 0 {
		return true, nil
	}
	for _, g := range groups {
		ok, err := MatchGroup(g, get)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// MatchGroup evaluates one AND-group in memory, with the same semantics the
// SQL backends compile to.
func MatchGroup(g Group, get Getter) (bool, error) {
	for _, field := range g.Fields() {
		val, ok := get(field)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		var hit bool
		switch c := g[field].(type) {
		case Equals:
			want, isNull := literal(c.Value)
			if isNull {
				hit = val == nil
			} else {
				hit = val != nil && *val == want
			}
		case ILike:
			hit = val != nil && strings.Contains(strings.ToLower(*val), strings.ToLower(c.Term))
		case IsNull:
			hit = val == nil
		case In:
			if val != nil {
				for _, v := range c.Values {
					if v == *val {
						hit = true
						break
					}
				}
			}
		default:
			return false, fmt.Errorf("%w: %T on %s", ErrUnsupportedCondition, c, field)
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

// literal renders an Equals value as text. Reports isNull for nil and nil
// string pointers.
func literal(v any) (s string, isNull bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, false
	case *string:
		if x == nil {
			return "", true
		}
		return *x, false
	case fmt.Stringer:
		return x.String(), false
	}
	return fmt.Sprint(v), false
}
