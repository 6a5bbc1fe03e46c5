package query

import (
	"entrepo/internal/errs"
	"entrepo/internal/filter"
	"entrepo/internal/schema"
)

// ToFieldSelection нормализует обе формы fields в список колонок
// (в порядке описания сущности) и безусловно выкидывает скрытые.
//
// Массив — allow-list. Map: если есть хотя бы одно true, берутся только
// true-поля; иначе все колонки, кроме явно выключенных.
// Результат может быть пустым: например, fields: ["secret"].
func ToFieldSelection(d *schema.Descriptor, fields filter.Fields) ([]string, error) {
	if fields.IsZero() {
		return d.VisibleColumns(), nil
	}

	want := make(map[string]bool, len(d.Columns))
	if fields.List != nil {
		for _, f := range fields.List {
			if !d.HasColumn(f) {
				return nil, errs.Validation(d.Name, "fields", "unknown field %q", f)
			}
			want[f] = true
		}
	} else {
		anyTrue := false
		for f, on := range fields.Map {
			if !d.HasColumn(f) {
				return nil, errs.Validation(d.Name, "fields", "unknown field %q", f)
			}
			anyTrue = anyTrue || on
		}
		for _, c := range d.Columns {
			on, listed := fields.Map[c.Name]
			if anyTrue {
				want[c.Name] = listed && on
			} else {
				want[c.Name] = !listed || on
			}
		}
	}

	out := make([]string, 0, len(want))
	for _, c := range d.Columns {
		if want[c.Name] && !c.Hidden {
			out = append(out, c.Name)
		}
	}
	return out, nil
}
