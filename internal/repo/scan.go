package repo

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"entrepo/internal/errs"
	"entrepo/internal/schema"
)

// scanRows читает все строки в map[колонка]значение.
// json-колонки декодируются, массивы из текстового формата PG разбираются.
func scanRows(d *schema.Descriptor, rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var types *pgtype.Map // лениво, только если встретился массив
	out := make([]Row, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, name := range cols {
			c, _ := d.Column(name)
			v, err := decode(c, vals[i], &types)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
			row[name] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decode(c schema.Column, v any, types **pgtype.Map) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Type {
	case schema.TypeJSON:
		var raw []byte
		switch t := v.(type) {
		case []byte:
			raw = t
		case string:
			raw = []byte(t)
		default:
			return v, nil
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil

	case schema.TypeStringArray, schema.TypeIntArray:
		var src any
		switch t := v.(type) {
		case []byte:
			src = string(t)
		case string:
			src = t
		default:
			return v, nil // драйвер уже отдал срез
		}
		if *types == nil {
			*types = pgtype.NewMap()
		}
		if c.Type == schema.TypeIntArray {
			var out []int64
			if err := (*types).SQLScanner(&out).Scan(src); err != nil {
				return nil, err
			}
			return out, nil
		}
		var out []string
		if err := (*types).SQLScanner(&out).Scan(src); err != nil {
			return nil, err
		}
		return out, nil
	}

	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

// storeError превращает ошибку драйвера в ошибку движка.
// Класс 23 (integrity constraint violation) -> ErrConstraintViolation
// с кодом, именем ограничения и деталями от PostgreSQL.
func storeError(d *schema.Descriptor, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return errs.WithContext(err, d.Name, op)
	}
	// сессия закрыта мимо Commit/Rollback
	if errors.Is(err, sql.ErrTxDone) {
		return errs.Wrap(errs.ErrInactiveTransaction, d.Name, op, err, "transaction session is closed")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
		detail := pgErr.Detail
		if detail == "" {
			detail = pgErr.Message
		}
		return errs.Wrap(errs.ErrConstraintViolation, d.Name, op, err,
			"%s (code %s, constraint %q)", detail, pgErr.Code, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s.%s: %w", d.Name, op, err)
}
