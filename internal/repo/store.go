// Package repo — репозитории сущностей поверх PostgreSQL: чтение с фильтрами
// и раскрытием связей, мутации, транзакции. Всё, что уходит наружу,
// проходит через redact.
package repo

import (
	"context"
	"database/sql"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"entrepo/internal/errs"
	"entrepo/internal/metrics"
	"entrepo/internal/schema"
	"entrepo/internal/txn"
)

// DefaultMaxIncludeDepth — глубина вложенных include по умолчанию.
const DefaultMaxIncludeDepth = 3

// Store — точка входа: реестр моделей + пул соединений.
// Репозитории создаются лениво и кэшируются; данных Store не хранит.
type Store struct {
	db       *sql.DB
	reg      *schema.Registry
	txm      *txn.Manager
	log      *logrus.Entry
	metrics  *metrics.Collector
	maxDepth int

	repos sync.Map // table -> *Repository

	idMu    sync.Mutex
	entropy io.Reader
}

// StoreOption — настройка Store.
type StoreOption func(*Store)

func WithLogger(log *logrus.Entry) StoreOption {
	return func(s *Store) { s.log = log }
}

func WithMetrics(c *metrics.Collector) StoreOption {
	return func(s *Store) { s.metrics = c }
}

// WithMaxIncludeDepth ограничивает вложенность include; n <= 0 — по умолчанию.
func WithMaxIncludeDepth(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// NewStore собирает Store. Реестр должен быть заполнен до первого запроса
// к связям, но не обязательно до NewStore.
func NewStore(db *sql.DB, reg *schema.Registry, opts ...StoreOption) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &Store{
		db:       db,
		reg:      reg,
		maxDepth: DefaultMaxIncludeDepth,
		entropy:  ulid.Monotonic(src, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.txm = txn.NewManager(db, s.log)
	return s
}

// Repository — репозиторий сущности по имени таблицы или имени сущности.
func (s *Store) Repository(name string) (*Repository, error) {
	d, ok := s.reg.Descriptor(name)
	if !ok {
		return nil, errs.New(errs.ErrUnresolvedReference, name, "repository", "entity is not registered")
	}
	if r, ok := s.repos.Load(d.Table); ok {
		return r.(*Repository), nil
	}
	r, _ := s.repos.LoadOrStore(d.Table, &Repository{store: s, d: d})
	return r.(*Repository), nil
}

// MustRepository — для wiring'а на старте.
func (s *Store) MustRepository(name string) *Repository {
	r, err := s.Repository(name)
	if err != nil {
		panic(err)
	}
	return r
}

func (s *Store) Registry() *schema.Registry { return s.reg }

// BeginTransaction открывает транзакцию; пустой level — READ COMMITTED.
func (s *Store) BeginTransaction(ctx context.Context, level txn.IsolationLevel) (*txn.Transaction, error) {
	return s.txm.Begin(ctx, level)
}

// Connector — сырой пул соединений в обход репозиториев: без фильтров
// и без редактирования скрытых колонок. Для служебных утилит и тестов.
func (s *Store) Connector() *sql.DB { return s.db }

func (s *Store) newULID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// observe начинает наблюдаемую операцию; вернувшаяся функция пишет лог и метрики.
func (s *Store) observe(d *schema.Descriptor, op string) func(rows int, err error) {
	start := time.Now()
	return func(rows int, err error) {
		took := time.Since(start)
		s.metrics.ObserveQuery(d.Name, op, took, rows, err)
		entry := s.log.WithFields(logrus.Fields{
			"entity": d.Name,
			"op":     op,
			"rows":   rows,
			"took":   took,
		})
		if err != nil {
			entry.WithError(err).Warn("repository operation failed")
			return
		}
		entry.Debug("repository operation")
	}
}

// querier — сессия транзакции (с проверкой состояния) или пул.
func (s *Store) querier(d *schema.Descriptor, op string, o options) (txn.Querier, error) {
	if o.tx == nil {
		return s.db, nil
	}
	q, err := o.tx.Querier()
	if err != nil {
		return nil, errs.WithContext(err, d.Name, op)
	}
	return q, nil
}
