package repo

import (
	"context"
	"fmt"
	"strings"

	"entrepo/internal/filter"
	"entrepo/internal/query"
	"entrepo/internal/schema"
)

// include раскрывает одну связь для пачки родителей: один запрос
// "ref IN (ключи родителей)" на всю пачку, дальше группировка в памяти.
// skip/limit из scope применяются к каждому родителю отдельно.
func (rd reader) include(ctx context.Context, d *schema.Descriptor, parents []Row, rel schema.Relation, reqScope *filter.Filter, depth int) error {
	scope := mergeScope(rel.Scope, reqScope)

	var (
		keys   [][]any
		seen   = map[string]bool{}
		parKey = make([]string, len(parents))
	)
	for i, p := range parents {
		vals, ok := tuple(p, rel.Fields)
		if !ok {
			continue
		}
		k := tupleKey(vals)
		parKey[i] = k
		if !seen[k] {
			seen[k] = true
			keys = append(keys, vals)
		}
	}

	groups := map[string][]Row{}
	if len(keys) > 0 {
		child := *scope
		skip, limit := child.Skip, child.Limit
		child.Skip, child.Limit = nil, nil

		rows, strip, err := rd.fetch(ctx, rel.Target, &child, keyMatch(rel.References, keys), rel.References, depth)
		if err != nil {
			return err
		}
		// группируем до финализации: ссылочные колонки могут быть служебными
		keyOf := make([]string, len(rows))
		for i, row := range rows {
			vals, _ := tuple(row, rel.References)
			keyOf[i] = tupleKey(vals)
		}
		rows = finalize(rel.Target, rows, strip)
		for i, row := range rows {
			groups[keyOf[i]] = append(groups[keyOf[i]], row)
		}
		for k, list := range groups {
			groups[k] = page(list, skip, limit)
		}
	}

	for i, p := range parents {
		list := groups[parKey[i]]
		if parKey[i] == "" {
			list = nil
		}
		if rel.Kind == schema.One {
			if len(list) > 0 {
				p[rel.Name] = list[0]
			} else {
				p[rel.Name] = nil
			}
			continue
		}
		if list == nil {
			list = []Row{}
		}
		p[rel.Name] = list
	}
	return nil
}

// mergeScope: scope связи по умолчанию + scope из запроса.
// where складываются через and, остальное из запроса перекрывает.
func mergeScope(def, req *filter.Filter) *filter.Filter {
	out := filter.Filter{}
	if def != nil {
		out = *def
	}
	if req == nil {
		return &out
	}
	switch {
	case out.Where.IsEmpty():
		out.Where = req.Where
	case !req.Where.IsEmpty():
		out.Where = filter.Where{"and": []any{map[string]any(out.Where), map[string]any(req.Where)}}
	}
	if req.Order != nil {
		out.Order = req.Order
	}
	if req.Limit != nil {
		out.Limit = req.Limit
	}
	if req.Skip != nil {
		out.Skip = req.Skip
	}
	if !req.Fields.IsZero() {
		out.Fields = req.Fields
	}
	if req.Include != nil {
		out.Include = req.Include
	}
	return &out
}

func page(list []Row, skip, limit *int) []Row {
	if skip != nil {
		if *skip >= len(list) {
			return []Row{}
		}
		list = list[*skip:]
	}
	if limit != nil && *limit < len(list) {
		list = list[:*limit]
	}
	return list
}

// tuple — значения колонок строки; false, если хоть одно NULL.
func tuple(row Row, cols []string) ([]any, bool) {
	out := make([]any, len(cols))
	for i, c := range cols {
		v, ok := row[c]
		if !ok || v == nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func tupleKey(vals []any) string {
	if vals == nil {
		return ""
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		parts[i] = fmt.Sprint(v)
	}
	return "k:" + strings.Join(parts, "\x00")
}

// keyMatch: ref IN (...) для одной колонки, иначе OR по кортежам.
func keyMatch(refs []string, keys [][]any) query.Expr {
	if len(refs) == 1 {
		vals := make([]any, len(keys))
		for i, k := range keys {
			vals[i] = k[0]
		}
		return query.In{Left: schema.Ident(refs[0]), Values: vals}
	}
	alts := make([]query.Expr, 0, len(keys))
	for _, k := range keys {
		eqs := make([]query.Expr, len(refs))
		for i, ref := range refs {
			eqs[i] = query.Cmp{Left: schema.Ident(ref), Op: "=", Value: k[i]}
		}
		alts = append(alts, query.AllOf(eqs...))
	}
	return query.AnyOf(alts...)
}
