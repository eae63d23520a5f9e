package query

// CompileSearch builds the OR-set of fuzzy predicates for a free-text search.
//
// One group per field, each requiring that field to contain term
// (case-insensitive). With rootOnly every group is also constrained to
// parentId IS NULL. An empty term yields an empty list: no filtering.
func CompileSearch(term string, fields []string, rootOnly bool) []Group {
	if term == "" {
		return []Group{}
	}
	groups := make([]Group, 0, len(fields))
	for _, field := range fields {
		g := Group{field: ILike{Term: term}}
		if rootOnly {
			g[ParentIDField] = IsNull{}
		}
		groups = append(groups, g)
	}
	return groups
}

// SearchWhere is CompileSearch wrapped as a Where. Returns nil (match all)
// when there is nothing to filter on.
func SearchWhere(term string, fields []string, rootOnly bool) Where {
	groups := CompileSearch(term, fields, rootOnly)
	if len(groups) == 0 {
		return nil
	}
	return AnyOf{Groups: groups}
}

// RootsOnly matches entities without a parent.
func RootsOnly() Where {
	return Single{Group: Group{ParentIDField: IsNull{}}}
}
