package repo

import (
	"context"

	"github.com/sirupsen/logrus"

	"entrepo/internal/errs"
	"entrepo/internal/filter"
	"entrepo/internal/query"
	"entrepo/internal/redact"
	"entrepo/internal/schema"
	"entrepo/internal/txn"
)

// Find — все строки под фильтр, с раскрытием include.
func (r *Repository) Find(ctx context.Context, f *filter.Filter, opts ...Option) (rows []Row, err error) {
	done := r.store.observe(r.d, "find")
	defer func() { done(len(rows), err) }()

	q, err := r.store.querier(r.d, "find", collect(opts))
	if err != nil {
		return nil, err
	}
	return reader{s: r.store, q: q}.find(ctx, r.d, f, nil)
}

// FindOne — первая строка под фильтр или nil.
func (r *Repository) FindOne(ctx context.Context, f *filter.Filter, opts ...Option) (row Row, err error) {
	done := r.store.observe(r.d, "findOne")
	defer func() { done(countOne(row), err) }()

	q, err := r.store.querier(r.d, "findOne", collect(opts))
	if err != nil {
		return nil, err
	}
	one := limitOne(f)
	rows, err := reader{s: r.store, q: q}.find(ctx, r.d, one, nil)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FindByID — строка по первичному ключу или (nil, nil), если её нет.
// where из f дополнительно сужает выборку.
func (r *Repository) FindByID(ctx context.Context, id any, f *filter.Filter, opts ...Option) (row Row, err error) {
	done := r.store.observe(r.d, "findById")
	defer func() { done(countOne(row), err) }()

	byID, err := r.pkEquals("findById", id)
	if err != nil {
		return nil, err
	}
	q, err := r.store.querier(r.d, "findById", collect(opts))
	if err != nil {
		return nil, err
	}
	rows, err := reader{s: r.store, q: q}.find(ctx, r.d, limitOne(f), byID)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Count — число строк под where; пустой where — вся таблица.
func (r *Repository) Count(ctx context.Context, where filter.Where, opts ...Option) (n int64, err error) {
	done := r.store.observe(r.d, "count")
	defer func() { done(1, err) }()

	w, err := query.ToWhere(r.d, where)
	if err != nil {
		return 0, errs.WithContext(err, r.d.Name, "count")
	}
	q, err := r.store.querier(r.d, "count", collect(opts))
	if err != nil {
		return 0, err
	}
	st := query.Count{Table: r.d.Table, Where: w}.Build()
	r.store.trace(r.d, st)
	if err := q.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&n); err != nil {
		return 0, storeError(r.d, "count", err)
	}
	return n, nil
}

// ExistsWith — есть ли хоть одна строка под where.
func (r *Repository) ExistsWith(ctx context.Context, where filter.Where, opts ...Option) (ok bool, err error) {
	done := r.store.observe(r.d, "exists")
	defer func() { done(1, err) }()

	w, err := query.ToWhere(r.d, where)
	if err != nil {
		return false, errs.WithContext(err, r.d.Name, "exists")
	}
	q, err := r.store.querier(r.d, "exists", collect(opts))
	if err != nil {
		return false, err
	}
	st := query.Exists{Table: r.d.Table, Where: w}.Build()
	r.store.trace(r.d, st)
	if err := q.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&ok); err != nil {
		return false, storeError(r.d, "exists", err)
	}
	return ok, nil
}

// pkEquals — условие "pk = id" с приведением id к типу колонки.
func (r *Repository) pkEquals(op string, id any) (query.Expr, error) {
	pk, ok := r.d.Column(r.d.PrimaryKey)
	if !ok {
		return nil, errs.Validation(r.d.Name, op, "entity has no primary key column")
	}
	if id == nil {
		return nil, errs.Validation(r.d.Name, op, "id is required")
	}
	v, err := query.Coerce(pk, id)
	if err != nil {
		return nil, errs.Validation(r.d.Name, op, "id: %v", err)
	}
	return query.Cmp{Left: schema.Ident(pk.Name), Op: "=", Value: v}, nil
}

func limitOne(f *filter.Filter) *filter.Filter {
	out := filter.Filter{}
	if f != nil {
		out = *f
	}
	out.Limit = filter.Int(1)
	return &out
}

func countOne(row Row) int {
	if row == nil {
		return 0
	}
	return 1
}

// trace — SQL в debug-лог.
func (s *Store) trace(d *schema.Descriptor, st query.Statement) {
	if !s.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	s.log.WithFields(logrus.Fields{
		"entity": d.Name,
		"sql":    st.SQL,
		"args":   len(st.Args),
	}).Debug("statement")
}

// reader исполняет выборки в одной сессии (пул или транзакция).
type reader struct {
	s *Store
	q txn.Querier
}

// find — выборка с финализацией: внутренние колонки убраны, скрытые вырезаны.
func (rd reader) find(ctx context.Context, d *schema.Descriptor, f *filter.Filter, scope query.Expr) ([]Row, error) {
	if f == nil {
		f = &filter.Filter{}
	}
	if err := f.Validate(); err != nil {
		return nil, errs.WithContext(err, d.Name, "find")
	}
	if depth := f.Depth(); depth > rd.s.maxDepth {
		return nil, errs.Validation(d.Name, "find", "include depth %d exceeds limit %d", depth, rd.s.maxDepth)
	}
	rows, strip, err := rd.fetch(ctx, d, f, scope, nil, 0)
	if err != nil {
		return nil, err
	}
	return finalize(d, rows, strip), nil
}

// fetch выполняет SELECT и раскрывает include. Возвращает строки вместе
// с колонками need (нужны вызывающему для группировки) и список колонок,
// которые надо убрать перед выдачей.
func (rd reader) fetch(ctx context.Context, d *schema.Descriptor, f *filter.Filter, scope query.Expr, need []string, depth int) ([]Row, []string, error) {
	if depth > rd.s.maxDepth {
		return nil, nil, errs.Validation(d.Name, "include", "include depth exceeds limit %d", rd.s.maxDepth)
	}
	where, err := query.ToWhere(d, f.Where)
	if err != nil {
		return nil, nil, err
	}
	order, err := query.ToOrderBy(d, f.Order)
	if err != nil {
		return nil, nil, err
	}
	cols, err := query.ToFieldSelection(d, f.Fields)
	if err != nil {
		return nil, nil, err
	}

	rels := make([]schema.Relation, len(f.Include))
	for i, inc := range f.Include {
		rel, err := rd.s.reg.Relation(d, inc.Relation)
		if err != nil {
			return nil, nil, err
		}
		rels[i] = rel
		need = append(need, rel.Fields...)
	}
	if len(cols) == 0 && len(need) == 0 {
		// всё отфильтровано (например, fields: ["secret"]) — строки всё равно нужны
		need = append(need, d.PrimaryKey)
	}
	fetchCols, strip := withInternal(d, cols, need)

	st := query.Select{
		Table:   d.Table,
		Columns: fetchCols,
		Where:   query.AllOf(where, scope),
		OrderBy: order,
		Limit:   f.Limit,
		Offset:  f.Skip,
	}.Build()
	rd.s.trace(d, st)

	res, err := rd.q.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, nil, storeError(d, "find", err)
	}
	rows, err := scanRows(d, res)
	if err != nil {
		return nil, nil, storeError(d, "find", err)
	}

	for i, inc := range f.Include {
		if err := rd.include(ctx, d, rows, rels[i], inc.Scope, depth+1); err != nil {
			return nil, nil, err
		}
	}
	return rows, strip, nil
}

// withInternal: к выбранным колонкам добавляет служебные (ключи связей),
// порядок — как в дескрипторе. strip — добавленные сверх выборки.
func withInternal(d *schema.Descriptor, cols, need []string) (fetch, strip []string) {
	selected := make(map[string]bool, len(cols))
	for _, c := range cols {
		selected[c] = true
	}
	extra := make(map[string]bool, len(need))
	for _, c := range need {
		if !selected[c] {
			extra[c] = true
		}
	}
	for _, c := range d.Columns {
		switch {
		case selected[c.Name]:
			fetch = append(fetch, c.Name)
		case extra[c.Name]:
			fetch = append(fetch, c.Name)
			strip = append(strip, c.Name)
		}
	}
	return fetch, strip
}

// finalize убирает служебные колонки и скрытые поля.
func finalize(d *schema.Descriptor, rows []Row, strip []string) []Row {
	out := redact.Rows(d, rows)
	if len(strip) == 0 {
		return out
	}
	for _, row := range out {
		for _, c := range strip {
			delete(row, c)
		}
	}
	return out
}
