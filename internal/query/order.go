package query

import (
	"fmt"
	"strings"

	"entrepo/internal/errs"
	"entrepo/internal/schema"
)

// ToOrderBy переводит "поле [ASC|DESC] [NULLS FIRST|LAST]" в фрагменты ORDER BY.
// Путь вида data.meta[0].rank допустим для json-колонок: значение берётся
// через #>, отсутствующий путь даёт NULL (строка остаётся в выдаче).
func ToOrderBy(d *schema.Descriptor, order []string) ([]string, error) {
	out := make([]string, 0, len(order))
	for _, raw := range order {
		item, err := orderItem(d, raw)
		if err != nil {
			return nil, errs.WithContext(err, d.Name, "order")
		}
		if item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

func orderItem(d *schema.Descriptor, raw string) (string, error) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return "", nil
	}
	expr, err := orderPath(d, parts[0])
	if err != nil {
		return "", err
	}

	dir := "ASC"
	rest := parts[1:]
	if len(rest) > 0 && !strings.EqualFold(rest[0], "NULLS") {
		switch strings.ToUpper(rest[0]) {
		case "ASC", "DESC":
			dir = strings.ToUpper(rest[0])
		default:
			return "", errs.Validation(d.Name, "order", "%q: direction must be ASC or DESC", raw)
		}
		rest = rest[1:]
	}

	nulls := ""
	switch {
	case len(rest) == 0:
	case len(rest) == 2 && strings.EqualFold(rest[0], "NULLS") &&
		(strings.EqualFold(rest[1], "FIRST") || strings.EqualFold(rest[1], "LAST")):
		nulls = " NULLS " + strings.ToUpper(rest[1])
	default:
		return "", errs.Validation(d.Name, "order", "%q: unexpected %q", raw, strings.Join(rest, " "))
	}
	return expr + " " + dir + nulls, nil
}

// orderPath: "col" | "col.a.b" | "col.a[0].b" | "col[1]".
func orderPath(d *schema.Descriptor, path string) (string, error) {
	segs, err := splitPath(path)
	if err != nil {
		return "", errs.Validation(d.Name, "order", "%q: %v", path, err)
	}
	c, ok := d.Column(segs[0])
	if !ok {
		return "", errs.Validation(d.Name, "order", "unknown field %q", segs[0])
	}
	if len(segs) == 1 {
		return schema.Ident(c.Name), nil
	}
	if c.Type != schema.TypeJSON {
		return "", errs.Validation(d.Name, "order", "%q: nested path on non-json column", path)
	}
	return fmt.Sprintf("%s #> '{%s}'", schema.Ident(c.Name), strings.Join(segs[1:], ",")), nil
}

func splitPath(path string) ([]string, error) {
	var segs []string
	for _, dotted := range strings.Split(path, ".") {
		name, idx, hasIdx := strings.Cut(dotted, "[")
		segs = append(segs, name)
		for hasIdx {
			n, tail, closed := strings.Cut(idx, "]")
			if !closed {
				return nil, fmt.Errorf("malformed index in %q", dotted)
			}
			segs = append(segs, n)
			if tail == "" {
				break
			}
			if !strings.HasPrefix(tail, "[") {
				return nil, fmt.Errorf("malformed index in %q", dotted)
			}
			idx = tail[1:]
		}
	}
	for _, s := range segs {
		if !segmentRe.MatchString(s) {
			return nil, fmt.Errorf("invalid path segment %q", s)
		}
	}
	return segs, nil
}
