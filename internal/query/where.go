package query

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"entrepo/internal/errs"
	"entrepo/internal/filter"
	"entrepo/internal/schema"
)

var segmentRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var operators = map[string]struct{}{
	"eq": {}, "neq": {}, "gt": {}, "gte": {}, "lt": {}, "lte": {},
	"between": {}, "notBetween": {}, "in": {}, "notIn": {},
	"like": {}, "ilike": {}, "notLike": {}, "notILike": {},
	"startsWith": {}, "endsWith": {}, "isNull": {}, "isNotNull": {},
	"contains": {}, "containedBy": {}, "overlaps": {}, "jsonPath": {},
}

var comparisons = map[string]string{
	"eq": "=", "neq": "<>", "gt": ">", "gte": ">=", "lt": "<", "lte": "<=",
	"like": "LIKE", "ilike": "ILIKE", "notLike": "NOT LIKE", "notILike": "NOT ILIKE",
}

// target — то, с чем сравниваем: колонка или текст по JSON-пути внутри колонки.
type target struct {
	col  schema.Column
	sql  string
	path []string // непусто для JSON-пути
}

// ToWhere переводит where в дерево условий. Пустой where -> nil (все строки).
// Скрытые колонки здесь разрешены: редактирование касается только выдачи.
func ToWhere(d *schema.Descriptor, where filter.Where) (Expr, error) {
	e, err := toWhere(d, map[string]any(where))
	if err != nil {
		return nil, errs.WithContext(err, d.Name, "where")
	}
	return e, nil
}

func toWhere(d *schema.Descriptor, where map[string]any) (Expr, error) {
	if len(where) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []Expr
	for _, key := range keys {
		val := where[key]
		var (
			e   Expr
			err error
		)
		switch key {
		case "and", "or":
			e, err = logical(d, key, val)
		case "not":
			sub, ok := asMap(val)
			if !ok {
				return nil, errs.Validation(d.Name, "where", "not: expected object, got %T", val)
			}
			// пустой where — все строки, его отрицание — ни одной
			var inner Expr
			if inner, err = toWhere(d, sub); err == nil {
				if inner == nil {
					e = Raw{SQL: "FALSE"}
				} else {
					e = Not{Expr: inner}
				}
			}
		default:
			e, err = field(d, key, val)
		}
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
	}
	return AllOf(parts...), nil
}

func logical(d *schema.Descriptor, key string, val any) (Expr, error) {
	list, ok := asList(val)
	if !ok {
		return nil, errs.Validation(d.Name, "where", "%s: expected array of conditions, got %T", key, val)
	}
	subs := make([]Expr, 0, len(list))
	for i, item := range list {
		m, ok := asMap(item)
		if !ok {
			return nil, errs.Validation(d.Name, "where", "%s[%d]: expected object, got %T", key, i, item)
		}
		e, err := toWhere(d, m)
		if err != nil {
			return nil, err
		}
		subs = append(subs, e)
	}
	if key == "and" {
		return AllOf(subs...), nil
	}
	// пустая ветка в or матчит всё
	for _, s := range subs {
		if s == nil {
			return nil, nil
		}
	}
	return AnyOf(subs...), nil
}

func field(d *schema.Descriptor, key string, val any) (Expr, error) {
	tg, err := resolveTarget(d, key)
	if err != nil {
		return nil, err
	}
	ops, ok := asMap(val)
	if !ok {
		return operator(d, tg, "eq", val)
	}
	names := make([]string, 0, len(ops))
	for op := range ops {
		if _, known := operators[op]; !known {
			return nil, errs.Validation(d.Name, "where", "%s: unknown operator %q", key, op)
		}
		names = append(names, op)
	}
	if len(names) == 0 {
		return nil, errs.Validation(d.Name, "where", "%s: empty operator object", key)
	}
	sort.Strings(names)
	parts := make([]Expr, 0, len(names))
	for _, op := range names {
		e, err := operator(d, tg, op, ops[op])
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
	}
	return AllOf(parts...), nil
}

// resolveTarget: "col" или "col.a.b" (только для json-колонок).
func resolveTarget(d *schema.Descriptor, key string) (target, error) {
	if c, ok := d.Column(key); ok {
		return target{col: c, sql: schema.Ident(c.Name)}, nil
	}
	head, rest, dotted := strings.Cut(key, ".")
	if !dotted {
		return target{}, errs.Validation(d.Name, "where", "unknown field %q", key)
	}
	c, ok := d.Column(head)
	if !ok {
		return target{}, errs.Validation(d.Name, "where", "unknown field %q", key)
	}
	if c.Type != schema.TypeJSON {
		return target{}, errs.Validation(d.Name, "where", "%q: nested path on non-json column", key)
	}
	path := strings.Split(rest, ".")
	for _, seg := range path {
		if !segmentRe.MatchString(seg) {
			return target{}, errs.Validation(d.Name, "where", "%q: invalid path segment %q", key, seg)
		}
	}
	return target{
		col:  c,
		sql:  fmt.Sprintf("%s #>> '{%s}'", schema.Ident(c.Name), strings.Join(path, ",")),
		path: path,
	}, nil
}

func operator(d *schema.Descriptor, tg target, op string, val any) (Expr, error) {
	fail := func(format string, args ...any) error {
		return errs.Validation(d.Name, "where", "%s %s: %s", tg.col.Name, op, fmt.Sprintf(format, args...))
	}

	switch op {
	case "eq", "neq":
		if val == nil {
			return IsNull{Left: tg.sql, Negate: op == "neq"}, nil
		}
		if tg.path == nil && tg.col.Type == schema.TypeJSON {
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, fail("%v", err)
			}
			return Cmp{Left: tg.sql, Op: comparisons[op], Value: string(raw), Cast: "jsonb"}, nil
		}
		return compare(d, tg, op, val)

	case "gt", "gte", "lt", "lte":
		if val == nil {
			return nil, fail("null operand")
		}
		if tg.path == nil && tg.col.Type == schema.TypeJSON {
			return nil, fail("use a nested path to compare json values")
		}
		return compare(d, tg, op, val)

	case "like", "ilike", "notLike", "notILike":
		s, ok := val.(string)
		if !ok {
			return nil, fail("expected string pattern, got %T", val)
		}
		return Cmp{Left: textOf(tg), Op: comparisons[op], Value: s}, nil

	case "startsWith", "endsWith":
		s, ok := val.(string)
		if !ok {
			return nil, fail("expected string, got %T", val)
		}
		pattern := escapeLike(s) + "%"
		if op == "endsWith" {
			pattern = "%" + escapeLike(s)
		}
		return Cmp{Left: textOf(tg), Op: "LIKE", Value: pattern}, nil

	case "in", "notIn":
		list, ok := asList(val)
		if !ok {
			return nil, fail("expected array, got %T", val)
		}
		values := make([]any, 0, len(list))
		for _, item := range list {
			v, err := scalar(tg, item)
			if err != nil {
				return nil, fail("%v", err)
			}
			values = append(values, v)
		}
		return In{Left: lhs(tg, list), Values: values, Negate: op == "notIn"}, nil

	case "between", "notBetween":
		list, ok := asList(val)
		if !ok || len(list) != 2 {
			return nil, fail("expected [from, to]")
		}
		lo, err := scalar(tg, list[0])
		if err != nil {
			return nil, fail("%v", err)
		}
		hi, err := scalar(tg, list[1])
		if err != nil {
			return nil, fail("%v", err)
		}
		return Between{Left: lhs(tg, list), Lo: lo, Hi: hi, Negate: op == "notBetween"}, nil

	case "isNull", "isNotNull":
		flag, ok := val.(bool)
		if !ok {
			return nil, fail("expected boolean, got %T", val)
		}
		// isNull:false == isNotNull:true
		return IsNull{Left: tg.sql, Negate: (op == "isNull") != flag}, nil

	case "contains", "containedBy":
		sqlOp := "@>"
		if op == "containedBy" {
			sqlOp = "<@"
		}
		switch {
		case tg.path == nil && tg.col.Type == schema.TypeJSON:
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, fail("%v", err)
			}
			return Cmp{Left: tg.sql, Op: sqlOp, Value: string(raw), Cast: "jsonb"}, nil
		case tg.col.Type.IsArray():
			arr, err := arrayValue(tg.col, val)
			if err != nil {
				return nil, fail("%v", err)
			}
			return Cmp{Left: tg.sql, Op: sqlOp, Value: arr}, nil
		}
		return nil, fail("only json and array columns")

	case "overlaps":
		if !tg.col.Type.IsArray() {
			return nil, fail("only array columns")
		}
		arr, err := arrayValue(tg.col, val)
		if err != nil {
			return nil, fail("%v", err)
		}
		return Cmp{Left: tg.sql, Op: "&&", Value: arr}, nil

	case "jsonPath":
		if tg.path != nil || tg.col.Type != schema.TypeJSON {
			return nil, fail("only top-level json columns")
		}
		s, ok := val.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fail("expected non-empty jsonpath string")
		}
		return Raw{SQL: "jsonb_path_exists(" + tg.sql + ", ?::jsonpath)", Args: []any{s}}, nil
	}
	return nil, fail("unsupported operator")
}

func compare(d *schema.Descriptor, tg target, op string, val any) (Expr, error) {
	v, err := scalar(tg, val)
	if err != nil {
		return nil, errs.Validation(d.Name, "where", "%s %s: %v", tg.col.Name, op, err)
	}
	return Cmp{Left: lhs(tg, val), Op: comparisons[op], Value: v}, nil
}

// lhs: для JSON-пути с числовым операндом сравниваем как numeric.
// Приводится только значение json-типа number, остальное даёт NULL.
func lhs(tg target, sample any) string {
	if tg.path != nil && isNumeric(sample) {
		node := fmt.Sprintf("%s #> '{%s}'", schema.Ident(tg.col.Name), strings.Join(tg.path, ","))
		return fmt.Sprintf("(CASE WHEN jsonb_typeof(%s) = 'number' THEN (%s)::numeric END)", node, tg.sql)
	}
	return tg.sql
}

// textOf — LIKE работает по тексту; не-строковые колонки приводим.
func textOf(tg target) string {
	if tg.path != nil {
		return tg.sql
	}
	switch tg.col.Type {
	case schema.TypeString:
		return tg.sql
	}
	return tg.sql + "::text"
}

func isNumeric(v any) bool {
	switch t := v.(type) {
	case json.Number, float64, float32, int, int32, int64:
		return true
	case []any:
		return len(t) > 0 && isNumeric(t[0])
	}
	return false
}

// scalar приводит значение из фильтра к типу колонки.
func scalar(tg target, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if tg.path != nil {
		switch t := v.(type) {
		case json.Number:
			return t.Float64()
		case string, float64, int, int64:
			return t, nil
		case bool:
			return strconv.FormatBool(t), nil
		}
		return nil, fmt.Errorf("unsupported value %T for json path", v)
	}
	return Coerce(tg.col, v)
}

// Coerce приводит одно значение к типу колонки (json.Number, float64 из JSON и т.п.).
// Для json-колонок значение возвращается как есть.
func Coerce(c schema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Type {
	case schema.TypeInt:
		switch t := v.(type) {
		case json.Number:
			if n, err := t.Int64(); err == nil {
				return n, nil
			}
			return nil, fmt.Errorf("expected integer, got %s", t)
		case float64:
			if t != math.Trunc(t) {
				return nil, fmt.Errorf("expected integer, got %v", t)
			}
			if t < -(1<<63) || t >= 1<<63 {
				return nil, fmt.Errorf("integer out of range: %v", t)
			}
			return int64(t), nil
		case int:
			return int64(t), nil
		case int32:
			return int64(t), nil
		case int64:
			return t, nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", t)
			}
			return n, nil
		}
	case schema.TypeFloat, schema.TypeMoney:
		switch t := v.(type) {
		case json.Number:
			return t.Float64()
		case float64:
			return t, nil
		case float32:
			return float64(t), nil
		case int:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return nil, fmt.Errorf("expected number, got %q", t)
			}
			return f, nil
		}
	case schema.TypeBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(t)
			if err != nil {
				return nil, fmt.Errorf("expected boolean, got %q", t)
			}
			return b, nil
		}
	case schema.TypeString, schema.TypeUUID, schema.TypeDate, schema.TypeDatetime:
		switch t := v.(type) {
		case string:
			return t, nil
		case json.Number:
			return t.String(), nil
		case fmt.Stringer:
			return t.String(), nil
		}
		if c.Type == schema.TypeString {
			switch v.(type) {
			case float64, int, int64, bool:
				return fmt.Sprint(v), nil
			}
		} else {
			// time.Time и т.п. драйвер кодирует сам
			return v, nil
		}
	case schema.TypeJSON:
		return v, nil
	case schema.TypeStringArray, schema.TypeIntArray:
		return arrayValue(c, v)
	}
	return nil, fmt.Errorf("expected %s, got %T", c.Type, v)
}

func arrayValue(c schema.Column, v any) (any, error) {
	list, ok := asList(v)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	if c.Type == schema.TypeIntArray {
		out := make([]int64, 0, len(list))
		for _, item := range list {
			n, err := Coerce(schema.Column{Type: schema.TypeInt}, item)
			if err != nil || n == nil {
				return nil, fmt.Errorf("array element: expected integer, got %v", item)
			}
			out = append(out, n.(int64))
		}
		return out, nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("array element: expected string, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case filter.Where:
		return map[string]any(t), true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	case []filter.Where:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = map[string]any(m)
		}
		return out, true
	}
	return nil, false
}
