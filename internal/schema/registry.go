package schema

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"entrepo/internal/errs"
)

// Entry — дескриптор в реестре плюс кэш разрешённых связей.
type Entry struct {
	Descriptor *Descriptor

	mu       sync.Mutex
	called   bool       // RelationsFunc уже вызывалась
	raw      []Relation // то, что вернула RelationsFunc
	resolved []Relation
	byName   map[string]Relation
}

// Registry — реестр моделей. Не глобальный: создаётся явно и передаётся
// в репозитории, так что тесты получают изолированные реестры.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry // table -> entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register добавляет дескриптор под именем его таблицы.
// Повторная регистрация того же имени — ErrDuplicateModel.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil {
		return errs.Validation("", "register", "nil descriptor")
	}
	table := TableName(d)
	if table == "" {
		return errs.Validation(d.Name, "register", "cannot derive table name")
	}
	name := d.Name
	if name == "" {
		name = modelName(d, table)
	}
	pk := d.PrimaryKey
	if pk == "" && d.HasColumn("id") {
		pk = "id"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, exists := r.entries[table]; exists {
		return errs.New(errs.ErrDuplicateModel, name, "register",
			"table %q is already registered by %q", table, prev.Descriptor.Name)
	}
	// отвергнутый дескриптор остаётся как был
	d.Table, d.Name, d.PrimaryKey = table, name, pk
	r.entries[table] = &Entry{Descriptor: d}
	return nil
}

// MustRegister — для описаний моделей в коде/тестах.
func (r *Registry) MustRegister(ds ...*Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

func modelName(d *Descriptor, table string) string {
	if d.Model != nil {
		rt := reflect.TypeOf(d.Model)
		for rt.Kind() == reflect.Pointer {
			rt = rt.Elem()
		}
		if rt.Name() != "" {
			return rt.Name()
		}
	}
	return table
}

// Entry ищет запись: сначала точное имя таблицы, затем имя сущности
// без учёта регистра (только если оно уникально).
func (r *Registry) Entry(name string) (*Entry, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[name]; ok {
		return e, true
	}
	var found *Entry
	for table, e := range r.entries {
		if strings.EqualFold(table, name) || strings.EqualFold(e.Descriptor.Name, name) {
			if found != nil && found != e { // неуникально
				return nil, false
			}
			found = e
		}
	}
	return found, found != nil
}

// Descriptor — то же, что Entry, но сразу дескриптор.
func (r *Registry) Descriptor(name string) (*Descriptor, bool) {
	e, ok := r.Entry(name)
	if !ok {
		return nil, false
	}
	return e.Descriptor, true
}

// All — все дескрипторы, стабильно по имени таблицы.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)

	out := make([]*Descriptor, 0, len(keys))
	r.mu.RLock()
	for _, k := range keys {
		out = append(out, r.entries[k].Descriptor)
	}
	r.mu.RUnlock()
	return out
}

// ResolveRelations разрешает связи сущности: RelationsFunc вызывается ровно
// один раз, результат кэшируется. Если цель ещё не зарегистрирована —
// ErrUnresolvedReference; повторный вызов после регистрации цели пройдёт.
func (r *Registry) ResolveRelations(d *Descriptor) ([]Relation, error) {
	e, ok := r.Entry(d.Table)
	if !ok || e.Descriptor != d {
		return nil, errs.New(errs.ErrUnresolvedReference, d.Name, "relations", "entity is not registered")
	}
	return r.resolveEntry(e)
}

func (r *Registry) resolveEntry(e *Entry) ([]Relation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resolved != nil {
		return e.resolved, nil
	}
	if !e.called {
		e.called = true
		if e.Descriptor.Relations != nil {
			e.raw = e.Descriptor.Relations()
		}
	}

	d := e.Descriptor
	out := make([]Relation, 0, len(e.raw))
	byName := make(map[string]Relation, len(e.raw))
	for _, rel := range e.raw {
		linked, err := r.link(d, rel)
		if err != nil {
			return nil, err
		}
		if _, dup := byName[linked.Name]; dup {
			return nil, errs.Validation(d.Name, "relations", "relation %q declared twice", linked.Name)
		}
		byName[linked.Name] = linked
		out = append(out, linked)
	}
	e.resolved = out
	e.byName = byName
	return out, nil
}

// link находит целевой дескриптор в реестре и проверяет колонки соединения.
func (r *Registry) link(d *Descriptor, rel Relation) (Relation, error) {
	if rel.Name == "" {
		return rel, errs.Validation(d.Name, "relations", "relation without name")
	}
	if rel.Kind != One && rel.Kind != Many {
		return rel, errs.Validation(d.Name, "relations", "relation %q: kind must be one|many, got %q", rel.Name, rel.Kind)
	}

	var target *Descriptor
	switch {
	case rel.Target != nil:
		key := TableName(rel.Target)
		if e, ok := r.Entry(key); ok && key != "" {
			target = e.Descriptor
		}
	case rel.TargetName != "":
		if e, ok := r.Entry(rel.TargetName); ok {
			target = e.Descriptor
		}
	}
	if target == nil {
		name := rel.TargetName
		if name == "" && rel.Target != nil {
			name = rel.Target.Name
		}
		return rel, errs.New(errs.ErrUnresolvedReference, d.Name, "relations",
			"relation %q points to unregistered entity %q", rel.Name, name)
	}
	rel.Target = target
	rel.TargetName = target.Name

	if len(rel.Fields) == 0 || len(rel.Fields) != len(rel.References) {
		return rel, errs.Validation(d.Name, "relations",
			"relation %q: fields and references must be non-empty and of equal length", rel.Name)
	}
	for _, f := range rel.Fields {
		if !d.HasColumn(f) {
			return rel, errs.New(errs.ErrUnresolvedReference, d.Name, "relations",
				"relation %q: unknown local column %q", rel.Name, f)
		}
	}
	for _, f := range rel.References {
		if !target.HasColumn(f) {
			return rel, errs.New(errs.ErrUnresolvedReference, d.Name, "relations",
				"relation %q: unknown column %q on %s", rel.Name, f, target.Name)
		}
	}
	if err := rel.Scope.Validate(); err != nil {
		return rel, errs.WithContext(err, d.Name, "relations")
	}
	return rel, nil
}

// Relation — одна разрешённая связь по имени.
func (r *Registry) Relation(d *Descriptor, name string) (Relation, error) {
	if _, err := r.ResolveRelations(d); err != nil {
		return Relation{}, err
	}
	e, _ := r.Entry(d.Table)
	e.mu.Lock()
	rel, ok := e.byName[name]
	e.mu.Unlock()
	if !ok {
		return Relation{}, errs.Validation(d.Name, "include", "unknown relation %q", name)
	}
	return rel, nil
}

// ResolveAll — фаза «финализации»: разрешить связи всех сущностей сразу.
// Возвращает все найденные ошибки.
func (r *Registry) ResolveAll() error {
	var all []error
	for _, d := range r.All() {
		if _, err := r.ResolveRelations(d); err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}
