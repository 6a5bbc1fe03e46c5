package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"entrepo/internal/errs"
	"entrepo/internal/schema"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`) // YYYY-MM-DD

// normalize валидирует и нормализует data под колонки сущности.
// Скрытые колонки принимаются как обычные: скрытие касается только чтения.
// На create подставляются сгенерированные ключи и проверяется required.
func (r *Repository) normalize(op string, data Row, create bool) (Row, error) {
	var ferrs []errs.FieldError
	out := make(Row, len(data))

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		c, ok := r.d.Column(name)
		if !ok {
			ferrs = append(ferrs, errs.FieldError{Code: errs.CodeUnknownField, Field: name, Message: "unknown field"})
			continue
		}
		v, err := coerceValue(c, data[name])
		if err != nil {
			ferrs = append(ferrs, errs.FieldError{Code: errs.CodeTypeMismatch, Field: name, Message: err.Error()})
			continue
		}
		out[name] = v
	}

	if create {
		for _, c := range r.d.Columns {
			if _, given := data[c.Name]; given {
				continue // уже в out или уже в ошибках
			}
			switch c.Generate {
			case schema.GenerateULID:
				out[c.Name] = r.store.newULID()
				continue
			case schema.GenerateUUID:
				out[c.Name] = uuid.NewString()
				continue
			}
			if c.Required {
				ferrs = append(ferrs, errs.FieldError{Code: errs.CodeRequired, Field: c.Name, Message: "is required"})
			}
		}
	}

	if len(ferrs) > 0 {
		return nil, errs.InvalidFields(r.d.Name, op, ferrs)
	}
	return out, nil
}

// coerceValue приводит значение к типу колонки. null допустим только для
// nullable-колонок. json-значения кодируются в текст для драйвера.
func coerceValue(c schema.Column, v any) (any, error) {
	if v == nil {
		if !c.Nullable {
			return nil, errors.New("must not be null")
		}
		return nil, nil
	}
	switch c.Type {
	case schema.TypeString:
		return toStringStrict(v)
	case schema.TypeInt:
		return toIntStrict(v)
	case schema.TypeFloat, schema.TypeMoney:
		return toFloatStrict(v)
	case schema.TypeBool:
		return toBoolStrict(v)
	case schema.TypeUUID:
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		if _, err := uuid.Parse(s); err != nil {
			return nil, errors.New("must be uuid")
		}
		return s, nil
	case schema.TypeDate:
		if t, ok := v.(time.Time); ok {
			return t.Format("2006-01-02"), nil
		}
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		if !dateRe.MatchString(s) {
			return nil, errors.New("must match YYYY-MM-DD")
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return nil, errors.New("invalid date")
		}
		return s, nil
	case schema.TypeDatetime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, errors.New("must be RFC3339 datetime")
		}
		return t, nil
	case schema.TypeJSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("must be json-encodable: %v", err)
		}
		return string(raw), nil
	case schema.TypeStringArray:
		arr, err := toArray(v)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(arr))
		for i, ev := range arr {
			s, err := toStringStrict(ev)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %v", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	case schema.TypeIntArray:
		arr, err := toArray(v)
		if err != nil {
			return nil, err
		}
		out := make([]int64, 0, len(arr))
		for i, ev := range arr {
			n, err := toIntStrict(ev)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %v", i, err)
			}
			out = append(out, n)
		}
		return out, nil
	}
	// неизвестный тип — оставим как есть
	return v, nil
}

func toArray(v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, nil
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, nil
	}
	return nil, errors.New("must be array")
}

func toStringStrict(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	// числа не форматируем в строки молча — лучше отдать ошибку
	return "", errors.New("must be string")
}

func toIntStrict(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, errors.New("must be integer")
		}
		return n, nil
	case float64:
		// JSON числа приходят как float64 — проверяем целостность
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, errors.New("must be integer")
		}
		// 2^63 уже не влезает в int64
		if t < -(1<<63) || t >= 1<<63 {
			return 0, errors.New("out of int64 range")
		}
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, errors.New("must be integer")
		}
		return n, nil
	}
	return 0, errors.New("must be integer")
}

func toFloatStrict(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, errors.New("must be float")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errors.New("must be float")
		}
		return f, nil
	}
	return 0, errors.New("must be float")
}

func toBoolStrict(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		}
	}
	return false, errors.New("must be boolean")
}
