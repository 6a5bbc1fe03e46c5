package repo

import "entrepo/internal/txn"

// Row — одна запись в выдаче: колонка -> значение, плюс раскрытые связи.
type Row = map[string]any

// Result — итог мутации. Data == nil, если returning выключен;
// иначе каждая строка уже без скрытых колонок.
type Result struct {
	Count int64 `json:"count"`
	Data  []Row `json:"data,omitempty"`
}

// One — единственная строка результата (create/updateById/deleteById) или nil.
func (r Result) One() Row {
	if len(r.Data) == 0 {
		return nil
	}
	return r.Data[0]
}

type options struct {
	tx       *txn.Transaction
	noReturn bool
	force    bool
}

// Option — настройки одного вызова репозитория.
type Option func(*options)

// WithTx выполняет операцию в транзакции. Транзакция должна быть active
// в момент вызова, иначе ErrInactiveTransaction.
func WithTx(tx *txn.Transaction) Option {
	return func(o *options) { o.tx = tx }
}

// NoReturning — не возвращать строки из мутации, только Count.
func NoReturning() Option {
	return func(o *options) { o.noReturn = true }
}

// Force разрешает UpdateAll/DeleteAll с пустым where.
func Force() Option {
	return func(o *options) { o.force = true }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
