package query

import (
	"strings"

	"entrepo/internal/schema"
)

// Statement — готовый SQL с параметрами для database/sql.
type Statement struct {
	SQL  string
	Args []any
}

type defaultValue struct{}

// Default в значениях Insert рендерится как DEFAULT (колонка не передана).
var Default any = defaultValue{}

// Select описывает SELECT cols FROM table WHERE ... ORDER BY ... LIMIT/OFFSET.
type Select struct {
	Table   string
	Columns []string
	Where   Expr
	OrderBy []string // уже отрендеренные фрагменты из ToOrderBy
	Limit   *int
	Offset  *int
}

func (s Select) Build() Statement {
	var b builder
	b.write("SELECT ")
	if len(s.Columns) == 0 {
		b.write("1")
	} else {
		b.write(idents(s.Columns))
	}
	b.write(" FROM ")
	b.write(schema.Ident(s.Table))
	where(&b, s.Where)
	if len(s.OrderBy) > 0 {
		b.write(" ORDER BY ")
		b.write(strings.Join(s.OrderBy, ", "))
	}
	if s.Limit != nil {
		b.write(" LIMIT ")
		b.write(b.arg(*s.Limit))
	}
	if s.Offset != nil && *s.Offset > 0 {
		b.write(" OFFSET ")
		b.write(b.arg(*s.Offset))
	}
	return Statement{SQL: b.sb.String(), Args: b.args}
}

// Count — SELECT COUNT(*).
type Count struct {
	Table string
	Where Expr
}

func (c Count) Build() Statement {
	var b builder
	b.write("SELECT COUNT(*) FROM ")
	b.write(schema.Ident(c.Table))
	where(&b, c.Where)
	return Statement{SQL: b.sb.String(), Args: b.args}
}

// Exists — SELECT EXISTS(SELECT 1 ...).
type Exists struct {
	Table string
	Where Expr
}

func (e Exists) Build() Statement {
	var b builder
	b.write("SELECT EXISTS (SELECT 1 FROM ")
	b.write(schema.Ident(e.Table))
	where(&b, e.Where)
	b.write(")")
	return Statement{SQL: b.sb.String(), Args: b.args}
}

// Insert — многострочный INSERT ... VALUES (...), (...) [RETURNING ...].
type Insert struct {
	Table     string
	Columns   []string
	Rows      [][]any
	Returning []string
}

func (ins Insert) Build() Statement {
	var b builder
	b.write("INSERT INTO ")
	b.write(schema.Ident(ins.Table))
	if len(ins.Columns) == 0 {
		// все значения по умолчанию; одна строка
		b.write(" DEFAULT VALUES")
	} else {
		b.write(" (")
		b.write(idents(ins.Columns))
		b.write(") VALUES ")
		for i, row := range ins.Rows {
			if i > 0 {
				b.write(", ")
			}
			b.write("(")
			for j, v := range row {
				if j > 0 {
					b.write(", ")
				}
				if _, isDefault := v.(defaultValue); isDefault {
					b.write("DEFAULT")
					continue
				}
				b.write(b.arg(v))
			}
			b.write(")")
		}
	}
	returning(&b, ins.Returning)
	return Statement{SQL: b.sb.String(), Args: b.args}
}

// Assign — одна пара SET col = value.
type Assign struct {
	Column string
	Value  any
}

// Update — UPDATE table SET ... WHERE ... [RETURNING ...].
type Update struct {
	Table     string
	Set       []Assign
	Where     Expr
	Returning []string
}

func (u Update) Build() Statement {
	var b builder
	b.write("UPDATE ")
	b.write(schema.Ident(u.Table))
	b.write(" SET ")
	for i, a := range u.Set {
		if i > 0 {
			b.write(", ")
		}
		b.write(schema.Ident(a.Column))
		b.write(" = ")
		b.write(b.arg(a.Value))
	}
	where(&b, u.Where)
	returning(&b, u.Returning)
	return Statement{SQL: b.sb.String(), Args: b.args}
}

// Delete — DELETE FROM table WHERE ... [RETURNING ...].
type Delete struct {
	Table     string
	Where     Expr
	Returning []string
}

func (d Delete) Build() Statement {
	var b builder
	b.write("DELETE FROM ")
	b.write(schema.Ident(d.Table))
	where(&b, d.Where)
	returning(&b, d.Returning)
	return Statement{SQL: b.sb.String(), Args: b.args}
}

func where(b *builder, e Expr) {
	if e == nil {
		return
	}
	b.write(" WHERE ")
	e.render(b)
}

func returning(b *builder, cols []string) {
	if len(cols) == 0 {
		return
	}
	b.write(" RETURNING ")
	b.write(idents(cols))
}

func idents(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = schema.Ident(c)
	}
	return strings.Join(q, ", ")
}
