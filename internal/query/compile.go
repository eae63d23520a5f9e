package query

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultLimit  = 10
	DefaultOffset = 0
)

// Compile turns a declarative Request into the arguments a repository's Find
// and Count understand.
//
// Offset is a page index, not a row index: Skip = Offset * Limit.
func Compile(req Request) StoreQuery {
	limit, offset := NormalizePagination(req.Pagination)
	return StoreQuery{
		Where: Groups(req.Where),
		Take:  limit,
		Skip:  offset * limit,
		Order: req.Order,
	}
}

// NormalizePagination applies the {limit: 10, offset: 0} defaults and coerces
// both values to non-negative integers. Malformed values fall back to the
// default instead of being rejected.
func NormalizePagination(p *Pagination) (limit, offset int) {
	if p == nil {
		return DefaultLimit, DefaultOffset
	}
	return coerceInt(p.Limit, DefaultLimit), coerceInt(p.Offset, DefaultOffset)
}

func coerceInt(v any, def int) int {
	var n float64
	switch x := v.(type) {
	case nil:
		return def
	case int:
		n = float64(x)
	case int32:
		n = float64(x)
	case int64:
		n = float64(x)
	case uint:
		n = float64(x)
	case uint32:
		n = float64(x)
	case uint64:
		n = float64(x)
	case float32:
		n = float64(x)
	case float64:
		n = x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return def
		}
		n = f
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return def
		}
		if i, err := strconv.Atoi(s); err == nil {
			n = float64(i)
			break
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		n = f
	default:
		return def
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 || n > math.MaxInt32 {
		return def
	}
	return int(n)
}
