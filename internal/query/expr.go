// Package query переводит filter.Filter в SQL для PostgreSQL:
// where-деревья, order by, выборку колонок и готовые statement'ы с $n.
package query

import (
	"strconv"
	"strings"
)

// Expr — узел условия. Рендерится в общий builder, так что плейсхолдеры
// нумеруются сквозно по всему statement'у.
type Expr interface {
	render(b *builder)
}

type builder struct {
	sb   strings.Builder
	args []any
}

func (b *builder) write(s string) { b.sb.WriteString(s) }

// arg добавляет параметр и возвращает его плейсхолдер.
func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// Cmp: <Left> <Op> $n[::Cast]. Left — уже отрендеренное выражение колонки.
type Cmp struct {
	Left  string
	Op    string
	Value any
	Cast  string
}

func (c Cmp) render(b *builder) {
	b.write(c.Left)
	b.write(" ")
	b.write(c.Op)
	b.write(" ")
	b.write(b.arg(c.Value))
	if c.Cast != "" {
		b.write("::")
		b.write(c.Cast)
	}
}

// In: <Left> [NOT] IN ($1,$2,...). Пустой список: IN -> FALSE, NOT IN -> TRUE.
type In struct {
	Left   string
	Values []any
	Negate bool
}

func (in In) render(b *builder) {
	if len(in.Values) == 0 {
		if in.Negate {
			b.write("TRUE")
		} else {
			b.write("FALSE")
		}
		return
	}
	b.write(in.Left)
	if in.Negate {
		b.write(" NOT IN (")
	} else {
		b.write(" IN (")
	}
	for i, v := range in.Values {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.arg(v))
	}
	b.write(")")
}

// Between: <Left> [NOT] BETWEEN $1 AND $2.
type Between struct {
	Left   string
	Lo, Hi any
	Negate bool
}

func (bt Between) render(b *builder) {
	b.write(bt.Left)
	if bt.Negate {
		b.write(" NOT")
	}
	b.write(" BETWEEN ")
	b.write(b.arg(bt.Lo))
	b.write(" AND ")
	b.write(b.arg(bt.Hi))
}

// IsNull: <Left> IS [NOT] NULL.
type IsNull struct {
	Left   string
	Negate bool
}

func (n IsNull) render(b *builder) {
	b.write(n.Left)
	if n.Negate {
		b.write(" IS NOT NULL")
	} else {
		b.write(" IS NULL")
	}
}

// And / Or — логические списки; каждый элемент в скобках.
type And []Expr

type Or []Expr

func (a And) render(b *builder) { renderList(b, []Expr(a), " AND ") }
func (o Or) render(b *builder)  { renderList(b, []Expr(o), " OR ") }

func renderList(b *builder, list []Expr, sep string) {
	if len(list) == 1 {
		list[0].render(b)
		return
	}
	for i, e := range list {
		if i > 0 {
			b.write(sep)
		}
		b.write("(")
		e.render(b)
		b.write(")")
	}
}

// Not — отрицание вложенного условия.
type Not struct{ Expr Expr }

func (n Not) render(b *builder) {
	b.write("NOT (")
	n.Expr.render(b)
	b.write(")")
}

// Raw — произвольный фрагмент; каждый "?" заменяется на следующий $n из Args.
type Raw struct {
	SQL  string
	Args []any
}

func (r Raw) render(b *builder) {
	i := 0
	for _, ch := range r.SQL {
		if ch == '?' && i < len(r.Args) {
			b.write(b.arg(r.Args[i]))
			i++
			continue
		}
		b.sb.WriteRune(ch)
	}
}

// AllOf склеивает условия через AND, пропуская nil. Нет условий — nil.
func AllOf(exprs ...Expr) Expr {
	var out And
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if inner, ok := e.(And); ok {
			out = append(out, inner...)
			continue
		}
		out = append(out, e)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// AnyOf — то же для OR.
func AnyOf(exprs ...Expr) Expr {
	var out Or
	for _, e := range exprs {
		if e != nil {
			out = append(out, e)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// Render рендерит одиночное условие, нумерация с $1.
func Render(e Expr) (string, []any) {
	if e == nil {
		return "", nil
	}
	var b builder
	e.render(&b)
	return b.sb.String(), b.args
}
