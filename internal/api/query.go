package api

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"entrepo/internal/errs"
	"entrepo/internal/filter"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// ==== Типы сортировки и параметров листинга ====

type SortKey struct {
	Field string
	Desc  bool
}

// служебные ключи query-строки; всё остальное — условия на поля
var reservedParams = map[string]struct{}{
	"filter": {}, "where": {}, "force": {}, "nulls": {},
	"offset": {}, "limit": {}, "sort": {},
	"_offset": {}, "_limit": {}, "_sort": {},
}

// короткие имена операторов в query-строке: amount__gte=1000
var shortOps = map[string]string{
	"eq": "eq", "ne": "neq", "neq": "neq",
	"gt": "gt", "gte": "gte", "lt": "lt", "lte": "lte",
	"like": "like", "ilike": "ilike",
	"in": "in", "nin": "notIn",
	"null": "isNull",
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// ==== Парсинг query-параметров ====

// listFilter собирает фильтр листинга: JSON из ?filter=, поверх него
// _limit/_offset/_sort и условия вида field=v, field__op=v.
// Без явного limit отдаётся defaultLimit строк; больше maxLimit нельзя.
func listFilter(q url.Values) (*filter.Filter, error) {
	f := &filter.Filter{}
	if raw := q.Get("filter"); raw != "" {
		parsed, err := filter.Parse([]byte(raw))
		if err != nil {
			return nil, err
		}
		f = parsed
	}

	// limit
	if lv := firstOf(q, "_limit", "limit"); lv != "" {
		n, err := strconv.Atoi(lv)
		if err != nil || n < 0 {
			return nil, errs.Validation("", "filter", "limit: expected non-negative integer, got %q", lv)
		}
		f.Limit = filter.Int(n)
	}
	if f.Limit == nil {
		f.Limit = filter.Int(defaultLimit)
	}
	if *f.Limit > maxLimit {
		f.Limit = filter.Int(maxLimit)
	}

	// offset
	if ov := firstOf(q, "_offset", "offset"); ov != "" {
		n, err := strconv.Atoi(ov)
		if err != nil || n < 0 {
			return nil, errs.Validation("", "filter", "offset: expected non-negative integer, got %q", ov)
		}
		f.Skip = filter.Int(n)
	}

	// sort: -field — по убыванию; nulls=first|last
	if sv := firstOf(q, "_sort", "sort"); sv != "" {
		nulls := ""
		switch strings.ToLower(strings.TrimSpace(q.Get("nulls"))) {
		case "first":
			nulls = " NULLS FIRST"
		case "last":
			nulls = " NULLS LAST"
		}
		var order filter.Order
		for _, k := range parseSort(sv) {
			dir := " ASC"
			if k.Desc {
				dir = " DESC"
			}
			order = append(order, k.Field+dir+nulls)
		}
		f.Order = order
	}

	where, err := queryWhere(q)
	if err != nil {
		return nil, err
	}
	f.Where = andWhere(f.Where, where)
	return f, nil
}

func parseSort(sv string) []SortKey {
	var keys []SortKey
	for _, p := range strings.Split(sv, ",") {
		p = strings.TrimSpace(p)
		desc := false
		if strings.HasPrefix(p, "-") {
			desc = true
			p = strings.TrimPrefix(p, "-")
		} else if strings.HasPrefix(p, "+") {
			p = strings.TrimPrefix(p, "+")
		}
		if p != "" {
			keys = append(keys, SortKey{Field: p, Desc: desc})
		}
	}
	return keys
}

// queryWhere: ?where=<json> плюс условия на поля из query-строки, через and.
func queryWhere(q url.Values) (filter.Where, error) {
	var where filter.Where
	if raw := q.Get("where"); raw != "" {
		w, err := filter.ParseWhere([]byte(raw))
		if err != nil {
			return nil, err
		}
		where = w
	}
	conds, err := buildConds(q)
	if err != nil {
		return nil, err
	}
	return andWhere(where, conds), nil
}

// buildConds разбирает условия вида
//
//	status__in=Draft,Booked
//	amount__gte=1000
//	secret__null=true
//	code=A-1
func buildConds(q url.Values) (filter.Where, error) {
	keys := make([]string, 0, len(q))
	for k := range q {
		if _, skip := reservedParams[k]; !skip {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := filter.Where{}
	for _, key := range keys {
		v := q.Get(key)
		field, short := key, "eq"
		if i := strings.LastIndex(key, "__"); i > 0 {
			field, short = key[:i], key[i+2:]
		}
		op, ok := shortOps[short]
		if !ok {
			return nil, errs.Validation("", "where", "%s: unknown operator %q", field, short)
		}
		if strings.HasPrefix(v, "in:") {
			op, v = "in", strings.TrimPrefix(v, "in:")
		}

		var val any = v
		switch op {
		case "in", "notIn":
			var parts []any
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
			val = parts
		case "isNull":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errs.Validation("", "where", "%s__null: expected true/false, got %q", field, v)
			}
			val = b
		}

		ops, _ := out[field].(map[string]any)
		if ops == nil {
			ops = map[string]any{}
			out[field] = ops
		}
		ops[op] = val
	}
	return out, nil
}

// andWhere склеивает два where через and; пустые пропускаются.
func andWhere(a, b filter.Where) filter.Where {
	switch {
	case a.IsEmpty() && b.IsEmpty():
		return nil
	case a.IsEmpty():
		return b
	case b.IsEmpty():
		return a
	}
	return filter.Where{"and": []any{map[string]any(a), map[string]any(b)}}
}
