package dsl

import (
	"fmt"

	"entrepo/internal/filter"
	"entrepo/internal/schema"
)

// Entity описывает сущность из DSL
type Entity struct {
	Name      string
	Table     string // @table; пусто — выводится из имени
	Fields    []Field
	Relations []RelationDef
	Source    string // файл:строка объявления, для сообщений об ошибках
}

// Field описывает поле сущности
type Field struct {
	Name    string
	Type    string            // string, int, json, string[] и т.д.
	Options map[string]string // primary, hidden, required, unique, notnull, generate=, default=
}

// RelationDef — строка из блока relations:
//
//	channels: many Channel(id -> productId) {"order": "id ASC"}
type RelationDef struct {
	Name       string
	Kind       string // one | many
	Target     string
	Fields     []string
	References []string
	Scope      string // JSON-фильтр по умолчанию, может быть пустым
}

func (f Field) has(opt string) bool {
	_, ok := f.Options[opt]
	return ok
}

// Descriptor переводит сущность в дескриптор реестра. Связи отдаются
// лениво и по имени цели, так что порядок сущностей в файлах не важен.
func (e *Entity) Descriptor() (*schema.Descriptor, error) {
	d := &schema.Descriptor{Name: e.Name, Table: e.Table}

	for _, f := range e.Fields {
		primary := f.has("primary")
		c := schema.Column{
			Name:     f.Name,
			Type:     schema.ColumnType(f.Type),
			Required: f.has("required"),
			Hidden:   f.has("hidden"),
			Unique:   f.has("unique"),
			Generate: f.Options["generate"],
			Default:  f.Options["default"],
		}
		c.Nullable = !primary && !c.Required && !f.has("notnull")
		if primary {
			if d.PrimaryKey != "" {
				return nil, fmt.Errorf("%s: entity %s: second primary key %q (already %q)", e.Source, e.Name, f.Name, d.PrimaryKey)
			}
			d.PrimaryKey = f.Name
		}
		d.Columns = append(d.Columns, c)
	}

	rels := make([]schema.Relation, 0, len(e.Relations))
	for _, r := range e.Relations {
		rel := schema.Relation{
			Name:       r.Name,
			Kind:       schema.Cardinality(r.Kind),
			TargetName: r.Target,
			Fields:     r.Fields,
			References: r.References,
		}
		if r.Scope != "" {
			scope, err := filter.Parse([]byte(r.Scope))
			if err != nil {
				return nil, fmt.Errorf("%s: relation %s.%s: scope: %w", e.Source, e.Name, r.Name, err)
			}
			rel.Scope = scope
		}
		rels = append(rels, rel)
	}
	if len(rels) > 0 {
		d.Relations = func() []schema.Relation { return rels }
	}
	return d, nil
}

// Registry регистрирует все сущности в новом реестре.
// Связи не проверяются: это делают schema.Lint и первый запрос с include.
func Registry(entities []*Entity) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, e := range entities {
		d, err := e.Descriptor()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(d); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Source, err)
		}
	}
	return reg, nil
}
