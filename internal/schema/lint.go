package schema

import (
	"errors"
	"fmt"
	"strings"

	"entrepo/internal/errs"
)

// Issue — одна найденная проблема в описании сущностей.
type Issue struct {
	Entity  string `json:"entity"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field != "" {
		return fmt.Sprintf("%s.%s: %s: %s", i.Entity, i.Field, i.Code, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Entity, i.Code, i.Message)
}

// Lint проверяет базовые противоречия в зарегистрированных сущностях.
// Заодно разрешает связи: неразрешимая связь — тоже issue.
func Lint(r *Registry) []Issue {
	var issues []Issue

	for _, d := range r.All() {
		seen := map[string]struct{}{}
		for _, c := range d.Columns {
			if strings.TrimSpace(c.Name) == "" {
				issues = append(issues, Issue{Entity: d.Name, Code: "column_name_empty", Message: "column without name"})
				continue
			}
			if _, dup := seen[c.Name]; dup {
				issues = append(issues, Issue{
					Entity:  d.Name,
					Field:   c.Name,
					Code:    "column_duplicate",
					Message: "column declared twice",
				})
			}
			seen[c.Name] = struct{}{}

			if !c.Type.Known() {
				issues = append(issues, Issue{
					Entity:  d.Name,
					Field:   c.Name,
					Code:    "type_unknown",
					Message: fmt.Sprintf("unknown column type %q", c.Type),
				})
			}
			switch c.Generate {
			case "", GenerateULID, GenerateUUID:
			default:
				issues = append(issues, Issue{
					Entity:  d.Name,
					Field:   c.Name,
					Code:    "generate_unknown",
					Message: fmt.Sprintf("unknown generator %q (allowed: ulid|uuid)", c.Generate),
				})
			}
		}

		switch pk, ok := d.Column(d.PrimaryKey); {
		case d.PrimaryKey == "" || !ok:
			issues = append(issues, Issue{
				Entity:  d.Name,
				Field:   d.PrimaryKey,
				Code:    "primary_key_missing",
				Message: "primary key column is not declared",
			})
		case pk.Hidden:
			// скрытый PK не вернётся из create — такую сущность нельзя адресовать
			issues = append(issues, Issue{
				Entity:  d.Name,
				Field:   pk.Name,
				Code:    "primary_key_hidden",
				Message: "primary key cannot be hidden",
			})
		}

		if _, err := r.ResolveRelations(d); err != nil {
			code := "relation_invalid"
			if errors.Is(err, errs.ErrUnresolvedReference) {
				code = "relation_unresolved"
			}
			issues = append(issues, Issue{Entity: d.Name, Code: code, Message: err.Error()})
		}
	}
	return issues
}
