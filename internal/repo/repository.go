package repo

import (
	"context"

	"entrepo/internal/filter"
	"entrepo/internal/schema"
)

// Readable — операции чтения. Каждая возвращаемая строка (в том числе
// вложенные через include) очищена от скрытых колонок.
type Readable interface {
	Descriptor() *schema.Descriptor
	Find(ctx context.Context, f *filter.Filter, opts ...Option) ([]Row, error)
	FindOne(ctx context.Context, f *filter.Filter, opts ...Option) (Row, error)
	FindByID(ctx context.Context, id any, f *filter.Filter, opts ...Option) (Row, error)
	Count(ctx context.Context, where filter.Where, opts ...Option) (int64, error)
	ExistsWith(ctx context.Context, where filter.Where, opts ...Option) (bool, error)
}

// Persistable — чтение плюс мутации.
type Persistable interface {
	Readable
	Create(ctx context.Context, data Row, opts ...Option) (Result, error)
	CreateAll(ctx context.Context, data []Row, opts ...Option) (Result, error)
	UpdateByID(ctx context.Context, id any, data Row, opts ...Option) (Result, error)
	UpdateAll(ctx context.Context, where filter.Where, data Row, opts ...Option) (Result, error)
	DeleteByID(ctx context.Context, id any, opts ...Option) (Result, error)
	DeleteAll(ctx context.Context, where filter.Where, opts ...Option) (Result, error)
}

// Repository держит только дескриптор и ссылку на Store,
// поэтому параллельные вызовы на одном экземпляре независимы.
type Repository struct {
	store *Store
	d     *schema.Descriptor
}

var _ Persistable = (*Repository)(nil)

func (r *Repository) Descriptor() *schema.Descriptor { return r.d }
