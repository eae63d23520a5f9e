package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"owl-location/internal/query"
	"owl-location/internal/service"
)

// parseListRequest reads search, withRelationship, order[<field>] and
// pagination[limit|offset] from the query string. order entries keep the
// order they appear in the URL.
func parseListRequest(r *http.Request) (service.ListRequest, []FieldError) {
	var req service.ListRequest
	var fields []FieldError

	for _, pair := range strings.Split(r.URL.RawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			fields = append(fields, FieldError{Name: key, Message: key + " is invalid"})
			continue
		}

		switch {
		case key == "search":
			req.Search = value
		case key == "withRelationship":
			req.WithRelationship = isTruthy(value)
		case key == "pagination[limit]":
			req.Pagination = ensurePagination(req.Pagination)
			req.Pagination.Limit = value
		case key == "pagination[offset]":
			req.Pagination = ensurePagination(req.Pagination)
			req.Pagination.Offset = value
		case strings.HasPrefix(key, "order[") && strings.HasSuffix(key, "]"):
			field := strings.TrimSuffix(strings.TrimPrefix(key, "order["), "]")
			if !orderable(field) {
				fields = append(fields, FieldError{Name: key, Message: field + " is not orderable"})
				continue
			}
			dir, ok := query.ParseDirection(value)
			if !ok {
				fields = append(fields, FieldError{Name: key, Message: key + " must be ASC or DESC"})
				continue
			}
			if req.Order.Has(field) {
				continue
			}
			req.Order = append(req.Order, query.OrderField{Field: field, Direction: dir})
		}
	}
	return req, fields
}

func ensurePagination(p *query.Pagination) *query.Pagination {
	if p == nil {
		return &query.Pagination{}
	}
	return p
}

func orderable(field string) bool {
	for _, f := range service.OrderableFields {
		if f == field {
			return true
		}
	}
	return false
}
