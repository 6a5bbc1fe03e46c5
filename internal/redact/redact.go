// Package redact убирает скрытые колонки из строк, отдаваемых наружу.
package redact

import "entrepo/internal/schema"

// Row возвращает копию строки без скрытых колонок дескриптора.
// Ключи, которых нет в дескрипторе (например, раскрытые связи), остаются.
func Row(d *schema.Descriptor, row map[string]any) map[string]any {
	if row == nil {
		return nil
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		if d.IsHidden(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// Rows — Row для каждой строки; порядок сохраняется.
func Rows(d *schema.Descriptor, rows []map[string]any) []map[string]any {
	if rows == nil {
		return nil
	}
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = Row(d, r)
	}
	return out
}
