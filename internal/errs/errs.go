package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Виды ошибок движка. Проверять через errors.Is(err, errs.ErrValidation) и т.д.
var (
	ErrValidation          = errors.New("validation error")
	ErrDuplicateModel      = errors.New("duplicate model")
	ErrGuardedMutation     = errors.New("guarded mutation")
	ErrInactiveTransaction = errors.New("inactive transaction")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// Error несёт контекст: сущность, операцию и суть проблемы.
// Err — исходная ошибка хранилища (если есть), Kind — один из Err* выше.
type Error struct {
	Kind   error
	Entity string
	Op     string
	Detail string
	Err    error
	Fields []FieldError // поштучные ошибки валидации данных, если есть
}

// FieldError — ошибка одного поля во входных данных.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды FieldError.
const (
	CodeRequired     = "required"
	CodeTypeMismatch = "type_mismatch"
	CodeUnknownField = "unknown_field"
)

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Entity != "" {
		sb.WriteString(e.Entity)
	}
	if e.Op != "" {
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(e.Op)
	}
	if sb.Len() > 0 {
		sb.WriteString(": ")
	}
	if e.Kind != nil {
		sb.WriteString(e.Kind.Error())
	} else {
		sb.WriteString("error")
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Err != nil {
		sb.WriteString(" (")
		sb.WriteString(e.Err.Error())
		sb.WriteString(")")
	}
	return sb.String()
}

// Unwrap отдаёт и вид ошибки, и первопричину — errors.Is/As работают для обоих.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New собирает ошибку вида kind; detail форматируется как fmt.Sprintf.
func New(kind error, entity, op, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Kind: kind, Entity: entity, Op: op, Detail: detail}
}

// Wrap — то же, что New, плюс исходная ошибка.
func Wrap(kind error, entity, op string, cause error, detail string, args ...any) *Error {
	e := New(kind, entity, op, detail, args...)
	e.Err = cause
	return e
}

// Validation — самый частый случай, чтобы не писать New(ErrValidation, ...).
func Validation(entity, op, detail string, args ...any) *Error {
	return New(ErrValidation, entity, op, detail, args...)
}

// InvalidFields — ErrValidation со списком ошибок по полям.
func InvalidFields(entity, op string, fields []FieldError) *Error {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	e := New(ErrValidation, entity, op, strings.Join(parts, "; "))
	e.Fields = fields
	return e
}

// WithContext дописывает сущность/операцию в *Error, если их ещё нет.
// Ошибки других типов возвращаются как есть.
func WithContext(err error, entity, op string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Entity == "" {
		e.Entity = entity
	}
	if e.Op == "" {
		e.Op = op
	}
	return err
}
