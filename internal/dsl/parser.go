package dsl

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	entityRe         = regexp.MustCompile(`^entity\s+(\w+)\s*:\s*$`)
	tableRe          = regexp.MustCompile(`^@table\s+([A-Za-z_][A-Za-z0-9_]*)\s*$`)
	fieldRe          = regexp.MustCompile(`^([A-Za-z_]\w*)\s*:\s*([^\s#]+)(.*)$`)
	relationsStartRe = regexp.MustCompile(`^relations\s*:\s*$`)
	relationRe       = regexp.MustCompile(`^([A-Za-z_]\w*)\s*:\s*(one|many)\s+(\w+)\s*\(([^)]*)\)\s*(.*)$`)
)

// splitOptionTokens делит "required default='a b' generate=ulid" на токены,
// не рвёт по пробелам внутри кавычек.
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t' || r == ',') && !inSingle && !inDouble {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// stripComment срезает "# ..." вне кавычек.
func stripComment(s string) string {
	inSingle, inDouble := false, false
	for i, r := range s {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '#':
			if !inSingle && !inDouble {
				return strings.TrimSpace(s[:i])
			}
		}
	}
	return strings.TrimSpace(s)
}

func parseOptions(raw string) map[string]string {
	opts := map[string]string{}
	raw = strings.TrimSpace(raw)
	// необязательный префикс "options:"
	if strings.HasPrefix(strings.ToLower(raw), "options:") {
		raw = strings.TrimSpace(raw[len("options:"):])
	}
	for _, tok := range splitOptionTokens(raw) {
		// флаг без значения -> "true"
		if !strings.Contains(tok, "=") {
			opts[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if len(v) >= 2 {
			if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
				v = v[1 : len(v)-1]
			}
		}
		if k != "" {
			opts[k] = v
		}
	}
	return opts
}

func splitNames(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseRelation(line string) (RelationDef, bool) {
	m := relationRe.FindStringSubmatch(line)
	if m == nil {
		return RelationDef{}, false
	}
	local, ref, ok := strings.Cut(m[4], "->")
	if !ok {
		return RelationDef{}, false
	}
	return RelationDef{
		Name:       m[1],
		Kind:       m[2],
		Target:     m[3],
		Fields:     splitNames(local),
		References: splitNames(ref),
		Scope:      strings.TrimSpace(m[5]),
	}, true
}

// Parse читает сущности из одного DSL-потока; name идёт в сообщения об ошибках.
func Parse(r io.Reader, name string) ([]*Entity, error) {
	var entities []*Entity
	var current *Entity
	inRelations := false

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		pos := fmt.Sprintf("%s:%d", name, lineNo)

		// entity <Name>:
		if m := entityRe.FindStringSubmatch(trimmed); m != nil {
			if current != nil {
				entities = append(entities, current)
			}
			current = &Entity{Name: m[1], Source: pos}
			inRelations = false
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("%s: %q outside of entity", pos, trimmed)
		}

		if m := tableRe.FindStringSubmatch(trimmed); m != nil {
			current.Table = m[1]
			continue
		}
		if relationsStartRe.MatchString(trimmed) {
			inRelations = true
			continue
		}

		// scope-JSON может содержать '#', комментарии в связях не режем
		if inRelations {
			rel, ok := parseRelation(trimmed)
			if !ok {
				return nil, fmt.Errorf("%s: bad relation %q, want `name: one|many Target(local -> ref)`", pos, trimmed)
			}
			current.Relations = append(current.Relations, rel)
			continue
		}

		line := stripComment(trimmed)
		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("%s: cannot parse %q", pos, trimmed)
		}
		current.Fields = append(current.Fields, Field{
			Name:    m[1],
			Type:    strings.ToLower(m[2]),
			Options: parseOptions(m[3]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		entities = append(entities, current)
	}
	return entities, nil
}

// LoadEntities читает один .dsl-файл.
func LoadEntities(path string) ([]*Entity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file, path)
}

// LoadAllEntities обходит root и собирает сущности из всех *.dsl.
// Имя сущности уникально во всём наборе; результат отсортирован по имени.
func LoadAllEntities(root string) ([]*Entity, error) {
	seen := map[string]*Entity{}
	var result []*Entity

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}
		ents, err := LoadEntities(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for _, e := range ents {
			if prev, exists := seen[e.Name]; exists {
				return fmt.Errorf("duplicate entity %q: %s and %s", e.Name, prev.Source, e.Source)
			}
			seen[e.Name] = e
			result = append(result, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
