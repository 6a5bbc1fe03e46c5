package pg

import (
	"fmt"
	"strings"

	"entrepo/internal/schema"
)

// sqlType — тип PostgreSQL для колонки.
func sqlType(c schema.Column) (string, error) {
	switch c.Type {
	case schema.TypeString:
		return "text", nil
	case schema.TypeInt:
		return "bigint", nil
	case schema.TypeFloat:
		return "double precision", nil
	case schema.TypeMoney:
		return "numeric(18,2)", nil
	case schema.TypeBool:
		return "boolean", nil
	case schema.TypeDate:
		return "date", nil
	case schema.TypeDatetime:
		return "timestamp with time zone", nil
	case schema.TypeJSON:
		return "jsonb", nil
	case schema.TypeUUID:
		return "uuid", nil
	case schema.TypeStringArray:
		return "text[]", nil
	case schema.TypeIntArray:
		return "bigint[]", nil
	default:
		return "", fmt.Errorf("unknown type: %s", c.Type)
	}
}

// literal — значение default из DSL как SQL-литерал.
func literal(c schema.Column) string {
	v := strings.TrimSpace(c.Default)
	switch {
	case strings.EqualFold(v, "now()") && c.Type == schema.TypeDatetime:
		return "now()"
	case c.Type == schema.TypeInt || c.Type == schema.TypeFloat || c.Type == schema.TypeMoney:
		return v
	case c.Type == schema.TypeBool:
		return strings.ToLower(v)
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// GenerateDDL возвращает карту ключ -> SQL для ApplyDDL: сначала таблицы
// и unique-индексы, потом внешние ключи для связей one, ссылающихся
// на первичный ключ цели.
//
// Целочисленный первичный ключ без generate получает identity, чтобы
// create без id работал как в обычной таблице.
func GenerateDDL(reg *schema.Registry) (map[string]string, error) {
	out := map[string]string{}

	var tables strings.Builder
	for _, d := range reg.All() {
		var cols []string
		for _, c := range d.Columns {
			typ, err := sqlType(c)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", d.Name, c.Name, err)
			}
			def := schema.Ident(c.Name) + " " + typ
			switch {
			case c.Name == d.PrimaryKey:
				if c.Type == schema.TypeInt && c.Generate == "" && c.Default == "" {
					def += " generated by default as identity"
				}
				def += " primary key"
			case !c.Nullable:
				def += " not null"
			}
			if c.Default != "" {
				def += " default " + literal(c)
			}
			cols = append(cols, def)
		}
		fmt.Fprintf(&tables, "create table if not exists %s (\n  %s\n);\n",
			schema.Ident(d.Table), strings.Join(cols, ",\n  "))

		for _, c := range d.Columns {
			if c.Unique && c.Name != d.PrimaryKey {
				fmt.Fprintf(&tables, "create unique index if not exists %s on %s(%s);\n",
					schema.Ident(d.Table+"_"+c.Name+"_uq"), schema.Ident(d.Table), schema.Ident(c.Name))
			}
		}

		rels, err := reg.ResolveRelations(d)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			if rel.Kind != schema.One || len(rel.References) != 1 || rel.References[0] != rel.Target.PrimaryKey {
				continue
			}
			// по ключу на ограничение: уже существующее (42710) не мешает остальным
			name := d.Table + "_" + rel.Name + "_fk"
			out["200_"+name] = fmt.Sprintf("alter table %s add constraint %s foreign key (%s) references %s(%s) on delete restrict;",
				schema.Ident(d.Table), schema.Ident(name),
				schema.Ident(rel.Fields[0]), schema.Ident(rel.Target.Table), schema.Ident(rel.References[0]))
		}
	}

	out["000_tables"] = tables.String()
	return out, nil
}
