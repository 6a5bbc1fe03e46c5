package repo

import (
	"context"
	"database/sql"

	"entrepo/internal/errs"
	"entrepo/internal/filter"
	"entrepo/internal/query"
	"entrepo/internal/redact"
	"entrepo/internal/txn"
)

// Create вставляет одну строку. Скрытые колонки можно передавать:
// они сохраняются, но в Result.Data не попадают.
func (r *Repository) Create(ctx context.Context, data Row, opts ...Option) (res Result, err error) {
	done := r.store.observe(r.d, "create")
	defer func() { done(int(res.Count), err) }()

	return r.insert(ctx, "create", []Row{data}, collect(opts))
}

// CreateAll вставляет строки одним INSERT.
// Колонки, не переданные в конкретной строке, получают DEFAULT.
func (r *Repository) CreateAll(ctx context.Context, data []Row, opts ...Option) (res Result, err error) {
	done := r.store.observe(r.d, "createAll")
	defer func() { done(int(res.Count), err) }()

	o := collect(opts)
	if len(data) == 0 {
		if !o.noReturn {
			res.Data = []Row{}
		}
		return res, nil
	}
	return r.insert(ctx, "createAll", data, o)
}

func (r *Repository) insert(ctx context.Context, op string, data []Row, o options) (Result, error) {
	norm := make([]Row, len(data))
	for i, row := range data {
		n, err := r.normalize(op, row, true)
		if err != nil {
			return Result{}, err
		}
		norm[i] = n
	}

	var cols []string
	for _, c := range r.d.Columns {
		for _, row := range norm {
			if _, ok := row[c.Name]; ok {
				cols = append(cols, c.Name)
				break
			}
		}
	}
	if len(cols) == 0 && len(norm) > 1 {
		// DEFAULT VALUES — только одна строка; для пачки явный DEFAULT в ключе
		cols = []string{r.d.PrimaryKey}
	}
	values := make([][]any, len(norm))
	for i, row := range norm {
		vals := make([]any, len(cols))
		for j, c := range cols {
			if v, ok := row[c]; ok {
				vals[j] = v
			} else {
				vals[j] = query.Default
			}
		}
		values[i] = vals
	}

	q, err := r.store.querier(r.d, op, o)
	if err != nil {
		return Result{}, err
	}
	st := query.Insert{Table: r.d.Table, Columns: cols, Rows: values, Returning: r.returning(o)}.Build()
	return r.mutate(ctx, q, op, st, o)
}

// UpdateByID обновляет одну строку по первичному ключу.
// Строки нет — Count == 0 и пустой Data, без ошибки.
func (r *Repository) UpdateByID(ctx context.Context, id any, data Row, opts ...Option) (res Result, err error) {
	done := r.store.observe(r.d, "updateById")
	defer func() { done(int(res.Count), err) }()

	byID, err := r.pkEquals("updateById", id)
	if err != nil {
		return Result{}, err
	}
	return r.update(ctx, "updateById", byID, data, collect(opts))
}

// UpdateAll обновляет строки под where. Пустой where без Force() —
// ErrGuardedMutation: защита от случайного обновления всей таблицы.
func (r *Repository) UpdateAll(ctx context.Context, where filter.Where, data Row, opts ...Option) (res Result, err error) {
	done := r.store.observe(r.d, "updateAll")
	defer func() { done(int(res.Count), err) }()

	o := collect(opts)
	w, err := r.guardedWhere("updateAll", where, o)
	if err != nil {
		return Result{}, err
	}
	return r.update(ctx, "updateAll", w, data, o)
}

func (r *Repository) update(ctx context.Context, op string, w query.Expr, data Row, o options) (Result, error) {
	norm, err := r.normalize(op, data, false)
	if err != nil {
		return Result{}, err
	}
	if len(norm) == 0 {
		return Result{}, errs.Validation(r.d.Name, op, "nothing to update")
	}
	set := make([]query.Assign, 0, len(norm))
	for _, c := range r.d.Columns {
		if v, ok := norm[c.Name]; ok {
			set = append(set, query.Assign{Column: c.Name, Value: v})
		}
	}

	q, err := r.store.querier(r.d, op, o)
	if err != nil {
		return Result{}, err
	}
	st := query.Update{Table: r.d.Table, Set: set, Where: w, Returning: r.returning(o)}.Build()
	return r.mutate(ctx, q, op, st, o)
}

// DeleteByID удаляет одну строку; Data — удалённая строка (без скрытых).
func (r *Repository) DeleteByID(ctx context.Context, id any, opts ...Option) (res Result, err error) {
	done := r.store.observe(r.d, "deleteById")
	defer func() { done(int(res.Count), err) }()

	byID, err := r.pkEquals("deleteById", id)
	if err != nil {
		return Result{}, err
	}
	return r.delete(ctx, "deleteById", byID, collect(opts))
}

// DeleteAll удаляет строки под where; пустой where только с Force().
func (r *Repository) DeleteAll(ctx context.Context, where filter.Where, opts ...Option) (res Result, err error) {
	done := r.store.observe(r.d, "deleteAll")
	defer func() { done(int(res.Count), err) }()

	o := collect(opts)
	w, err := r.guardedWhere("deleteAll", where, o)
	if err != nil {
		return Result{}, err
	}
	return r.delete(ctx, "deleteAll", w, o)
}

func (r *Repository) delete(ctx context.Context, op string, w query.Expr, o options) (Result, error) {
	q, err := r.store.querier(r.d, op, o)
	if err != nil {
		return Result{}, err
	}
	st := query.Delete{Table: r.d.Table, Where: w, Returning: r.returning(o)}.Build()
	return r.mutate(ctx, q, op, st, o)
}

// guardedWhere переводит where и проверяет защиту от мутации всей таблицы.
// Where, который после перевода ничего не ограничивает ({"and": []}),
// считается пустым.
func (r *Repository) guardedWhere(op string, where filter.Where, o options) (query.Expr, error) {
	w, err := query.ToWhere(r.d, where)
	if err != nil {
		return nil, errs.WithContext(err, r.d.Name, op)
	}
	if w == nil && !o.force {
		return nil, errs.New(errs.ErrGuardedMutation, r.d.Name, op,
			"empty where would affect every row; pass Force() to confirm")
	}
	return w, nil
}

// returning — видимые колонки, если returning не выключен.
func (r *Repository) returning(o options) []string {
	if o.noReturn {
		return nil
	}
	if cols := r.d.VisibleColumns(); len(cols) > 0 {
		return cols
	}
	// все колонки скрыты: ключ нужен, чтобы посчитать строки; redact его уберёт
	return []string{r.d.PrimaryKey}
}

// mutate исполняет мутацию: с RETURNING читает строки, без — только счётчик.
func (r *Repository) mutate(ctx context.Context, q txn.Querier, op string, st query.Statement, o options) (Result, error) {
	r.store.trace(r.d, st)
	if o.noReturn {
		res, err := q.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return Result{}, storeError(r.d, op, err)
		}
		return Result{Count: affected(res)}, nil
	}
	rows, err := q.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return Result{}, storeError(r.d, op, err)
	}
	data, err := scanRows(r.d, rows)
	if err != nil {
		return Result{}, storeError(r.d, op, err)
	}
	data = redact.Rows(r.d, data)
	return Result{Count: int64(len(data)), Data: data}, nil
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
