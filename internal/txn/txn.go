// Package txn — транзакции поверх database/sql со строгой машиной состояний:
// active -> committed | rolledback, выхода из терминального состояния нет.
package txn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"entrepo/internal/errs"
)

// Querier — общий интерфейс *sql.DB и *sql.Tx, которым пользуются репозитории.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// IsolationLevel передаётся хранилищу как есть; своего MVCC у нас нет.
type IsolationLevel string

const (
	ReadCommitted  IsolationLevel = "READ COMMITTED"
	RepeatableRead IsolationLevel = "REPEATABLE READ"
	Serializable   IsolationLevel = "SERIALIZABLE"
)

// ParseIsolationLevel понимает "read committed", "READ_COMMITTED",
// "repeatable-read", "serializable". Пустая строка — ReadCommitted.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch norm {
	case "":
		return ReadCommitted, nil
	case string(ReadCommitted), string(RepeatableRead), string(Serializable):
		return IsolationLevel(norm), nil
	}
	return "", errs.Validation("", "begin", "unknown isolation level %q", s)
}

func (l IsolationLevel) sqlLevel() (sql.IsolationLevel, error) {
	switch l {
	case "", ReadCommitted:
		return sql.LevelReadCommitted, nil
	case RepeatableRead:
		return sql.LevelRepeatableRead, nil
	case Serializable:
		return sql.LevelSerializable, nil
	}
	return 0, errs.Validation("", "begin", "unknown isolation level %q", string(l))
}

// State — состояние транзакции.
type State int

const (
	Active State = iota
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolledback"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Manager открывает транзакции на пуле соединений.
type Manager struct {
	db  *sql.DB
	log *logrus.Entry
}

func NewManager(db *sql.DB, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{db: db, log: log.WithField("component", "txn")}
}

// Begin открывает транзакцию в состоянии active. Пустой level — READ COMMITTED.
// Транзакция держит соединение, пока не вызван Commit или Rollback.
func (m *Manager) Begin(ctx context.Context, level IsolationLevel) (*Transaction, error) {
	if level == "" {
		level = ReadCommitted
	}
	iso, err := level.sqlLevel()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("begin %s: %w", level, err)
	}
	// sql.Tx откатывается сам при отмене контекста Begin, а состояние
	// Transaction об этом не узнает. Жизнь транзакции задают только
	// Commit и Rollback.
	tx, err := m.db.BeginTx(context.WithoutCancel(ctx), &sql.TxOptions{Isolation: iso})
	if err != nil {
		return nil, fmt.Errorf("begin %s: %w", level, err)
	}
	t := &Transaction{
		id:      ulid.Make().String(),
		tx:      tx,
		level:   level,
		state:   Active,
		started: time.Now(),
	}
	t.log = m.log.WithFields(logrus.Fields{"tx": t.id, "isolation": string(level)})
	t.log.Debug("begin")
	return t, nil
}

// Transaction — изменяемый объект: сам отслеживает своё состояние.
// Передавать одну транзакцию в параллельные операции можно, но порядок
// их выполнения определяет вызывающий.
type Transaction struct {
	id      string
	mu      sync.Mutex
	tx      *sql.Tx
	level   IsolationLevel
	state   State
	started time.Time
	log     *logrus.Entry
}

func (t *Transaction) ID() string { return t.id }

// IsolationLevel — уровень, с которым транзакция была открыта.
func (t *Transaction) IsolationLevel() IsolationLevel { return t.level }

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transaction) inactive(op string) error {
	return errs.New(errs.ErrInactiveTransaction, "", op, "transaction %s is %s", t.id, t.state)
}

// Querier — проверка в точке использования: только active-транзакция
// отдаёт свою сессию.
func (t *Transaction) Querier() (Querier, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active {
		return nil, t.inactive("")
	}
	return t.tx, nil
}

// Commit фиксирует транзакцию. Ошибка хранилища (например, конфликт
// сериализации) возвращается как есть, транзакция при этом становится
// rolledback: повторный commit уже невозможен.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active {
		return t.inactive("commit")
	}
	err := t.tx.Commit()
	if err != nil {
		t.state = RolledBack
		t.log.WithError(err).WithField("took", time.Since(t.started)).Warn("commit failed")
		return err
	}
	t.state = Committed
	t.log.WithField("took", time.Since(t.started)).Debug("commit")
	return nil
}

// Rollback откатывает транзакцию. Состояние становится rolledback
// даже при ошибке драйвера: сессия всё равно потеряна.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active {
		return t.inactive("rollback")
	}
	t.state = RolledBack
	err := t.tx.Rollback()
	if err != nil {
		t.log.WithError(err).Warn("rollback failed")
		return err
	}
	t.log.WithField("took", time.Since(t.started)).Debug("rollback")
	return nil
}
