// Package filter описывает входной фильтр репозитория:
// where/order/limit/skip/fields/include в форме, не зависящей от хранилища.
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"entrepo/internal/errs"
)

// Where — дерево условий: поле -> значение | {оператор: значение},
// плюс логические ключи and/or (списки) и not (вложенный where).
type Where map[string]any

// Inclusion — раскрытие связи по имени, со своим вложенным фильтром.
type Inclusion struct {
	Relation string  `json:"relation"`
	Scope    *Filter `json:"scope,omitempty"`
}

// Filter — фильтр одного запроса.
type Filter struct {
	Where   Where       `json:"where,omitempty"`
	Order   Order       `json:"order,omitempty"`
	Limit   *int        `json:"limit,omitempty"`
	Skip    *int        `json:"skip,omitempty"`
	Fields  Fields      `json:"fields,omitempty"`
	Include []Inclusion `json:"include,omitempty"`
}

// Order — список "поле [ASC|DESC]". В JSON допускается одна строка.
type Order []string

func (o *Order) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		// "a ASC, b DESC" тоже встречается
		var out []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*o = out
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("order: expected string or array of strings")
	}
	*o = arr
	return nil
}

// Fields — выборка полей: массив (allow-list) или map поле->bool.
type Fields struct {
	List []string
	Map  map[string]bool
}

// IsZero — выборка не задана (берём все видимые колонки).
func (f Fields) IsZero() bool { return f.List == nil && f.Map == nil }

func (f *Fields) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = Fields{}
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var arr []string
		if err := json.Unmarshal(b, &arr); err != nil {
			return fmt.Errorf("fields: %w", err)
		}
		*f = Fields{List: arr}
		return nil
	}
	var m map[string]bool
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("fields: expected array or map of booleans")
	}
	*f = Fields{Map: m}
	return nil
}

func (f Fields) MarshalJSON() ([]byte, error) {
	if f.Map != nil {
		return json.Marshal(f.Map)
	}
	return json.Marshal(f.List)
}

// include: "rel" | ["rel", {...}] | {"relation": "rel", "scope": {...}}
func (in *Inclusion) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &in.Relation)
	}
	type plain Inclusion
	var p plain
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("include: %w", err)
	}
	*in = Inclusion(p)
	return nil
}

// Parse разбирает JSON-фильтр. Числа в where остаются json.Number,
// чтобы не терять точность bigint.
func Parse(data []byte) (*Filter, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Filter{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var f Filter
	if err := dec.Decode(&f); err != nil {
		return nil, errs.Validation("", "parse", "malformed filter: %v", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseWhere разбирает отдельный where (для count/updateAll/deleteAll).
func ParseWhere(data []byte) (Where, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var w Where
	if err := dec.Decode(&w); err != nil {
		return nil, errs.Validation("", "parse", "malformed where: %v", err)
	}
	return w, nil
}

// Validate проверяет то, что можно проверить без схемы сущности.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	if f.Limit != nil && *f.Limit < 0 {
		return errs.Validation("", "filter", "limit must be non-negative, got %d", *f.Limit)
	}
	if f.Skip != nil && *f.Skip < 0 {
		return errs.Validation("", "filter", "skip must be non-negative, got %d", *f.Skip)
	}
	seen := map[string]struct{}{}
	for _, inc := range f.Include {
		name := strings.TrimSpace(inc.Relation)
		if name == "" {
			return errs.Validation("", "filter", "include without relation name")
		}
		if _, dup := seen[name]; dup {
			return errs.Validation("", "filter", "relation %q included twice", name)
		}
		seen[name] = struct{}{}
		if err := inc.Scope.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Depth — глубина вложенных include (0, если include нет).
func (f *Filter) Depth() int {
	if f == nil {
		return 0
	}
	max := 0
	for _, inc := range f.Include {
		if d := 1 + inc.Scope.Depth(); d > max {
			max = d
		}
	}
	return max
}

// IsEmpty — where не задан или пуст: такой where матчит все строки.
func (w Where) IsEmpty() bool { return len(w) == 0 }

// Int — удобный конструктор для Limit/Skip.
func Int(n int) *int { return &n }
