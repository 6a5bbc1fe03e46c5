// Package schema — описание сущностей (колонки, скрытые поля, связи)
// и реестр моделей с ленивым разрешением связей.
package schema

import "entrepo/internal/filter"

// ColumnType — семантический тип колонки.
type ColumnType string

const (
	TypeString      ColumnType = "string"
	TypeInt         ColumnType = "int"
	TypeFloat       ColumnType = "float"
	TypeMoney       ColumnType = "money"
	TypeBool        ColumnType = "bool"
	TypeDate        ColumnType = "date"
	TypeDatetime    ColumnType = "datetime"
	TypeJSON        ColumnType = "json"
	TypeUUID        ColumnType = "uuid"
	TypeStringArray ColumnType = "string[]"
	TypeIntArray    ColumnType = "int[]"
)

// Known — тип поддерживается движком.
func (t ColumnType) Known() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeMoney, TypeBool, TypeDate, TypeDatetime,
		TypeJSON, TypeUUID, TypeStringArray, TypeIntArray:
		return true
	}
	return false
}

// IsArray — колонка-массив (text[] / bigint[]).
func (t ColumnType) IsArray() bool { return t == TypeStringArray || t == TypeIntArray }

// Генераторы значения первичного ключа при create.
const (
	GenerateULID = "ulid"
	GenerateUUID = "uuid"
)

// Column — одна колонка сущности.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Required bool   // обязателен при create
	Hidden   bool   // пишется как обычно, но никогда не попадает в выдачу репозитория
	Unique   bool   // только для DDL
	Generate string // ulid | uuid | "" — генерация значения, если его не передали
	Default  string // DDL default (как строка из DSL)
}

// Cardinality — один или много связанных объектов.
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// Relation — именованная навигация к другой сущности.
// Target можно не задавать: тогда TargetName ищется в реестре при разрешении.
type Relation struct {
	Name       string
	Kind       Cardinality
	Target     *Descriptor
	TargetName string
	Fields     []string // локальные колонки
	References []string // колонки целевой сущности
	Scope      *filter.Filter
}

// RelationsFunc — отложенное описание связей. Вызывается реестром один раз,
// когда связи впервые понадобились; к этому моменту все модели уже
// зарегистрированы, поэтому циклические ссылки A<->B не мешают.
type RelationsFunc func() []Relation

// TableNamer — модель сама знает имя своей таблицы.
type TableNamer interface {
	TableName() string
}

// Descriptor — статическое описание сущности.
// Создаётся один раз при описании модели и дальше не меняется.
type Descriptor struct {
	Name       string
	Table      string
	Model      any // опционально: Go-значение, по типу которого выводится имя таблицы
	Columns    []Column
	PrimaryKey string
	Relations  RelationsFunc
}

// Column ищет колонку по имени.
func (d *Descriptor) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (d *Descriptor) HasColumn(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// IsHidden — колонка помечена скрытой.
func (d *Descriptor) IsHidden(name string) bool {
	c, ok := d.Column(name)
	return ok && c.Hidden
}

// ColumnNames — все колонки в порядке описания.
func (d *Descriptor) ColumnNames() []string {
	out := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		out = append(out, c.Name)
	}
	return out
}

// VisibleColumns — колонки без скрытых, в порядке описания.
func (d *Descriptor) VisibleColumns() []string {
	out := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		if !c.Hidden {
			out = append(out, c.Name)
		}
	}
	return out
}

// HiddenColumns — только скрытые.
func (d *Descriptor) HiddenColumns() []string {
	var out []string
	for _, c := range d.Columns {
		if c.Hidden {
			out = append(out, c.Name)
		}
	}
	return out
}
