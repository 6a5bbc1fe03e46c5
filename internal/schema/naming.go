package schema

import (
	"reflect"
	"strings"
	"unicode"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// элементарная плюрализация (достаточно для products, channels, ...)
func plural(s string) string {
	switch {
	case strings.HasSuffix(s, "s"):
		return s
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}

// snake: ProductChannel -> product_channel
func snake(s string) string {
	var sb strings.Builder
	rs := []rune(s)
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rs[i-1]) || (i+1 < len(rs) && unicode.IsLower(rs[i+1]))) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// TableFromTypeName: имя типа -> имя таблицы, с защитой ключевых слов.
func TableFromTypeName(name string) string {
	t := plural(snake(name))
	if isReserved(t) {
		// помечаем «опасное» имя префиксом
		t = "e_" + t
	}
	return t
}

// TableName выводит имя таблицы дескриптора. Приоритет:
// явный d.Table -> d.Model.TableName() -> имя типа d.Model -> d.Name.
func TableName(d *Descriptor) string {
	if t := strings.TrimSpace(d.Table); t != "" {
		return t
	}
	if d.Model != nil {
		if tn, ok := d.Model.(TableNamer); ok {
			if t := strings.TrimSpace(tn.TableName()); t != "" {
				return t
			}
		}
		rt := reflect.TypeOf(d.Model)
		for rt.Kind() == reflect.Pointer {
			rt = rt.Elem()
		}
		if rt.Name() != "" {
			return TableFromTypeName(rt.Name())
		}
	}
	if d.Name != "" {
		return TableFromTypeName(d.Name)
	}
	return ""
}

// Ident — идентификатор в кавычках, регистр сохраняется (nValue != nvalue).
func Ident(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
