// Package seed загружает YAML-фикстуры и вставляет их через репозитории.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"entrepo/internal/repo"
)

// Fixture — строки одной сущности из одного файла.
type Fixture struct {
	Entity string           `yaml:"entity"`
	Rows   []map[string]any `yaml:"rows"`
	File   string           `yaml:"-"`
}

// Load читает все *.yaml / *.yml из dir в порядке имён файлов,
// так что зависимости задаются префиксами: 01_products.yaml, 02_channels.yaml.
// Нет каталога — нет фикстур.
func Load(dir string) ([]Fixture, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Fixture, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var fx Fixture
		if err := yaml.Unmarshal(data, &fx); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		// имя сущности — из entity или из имени файла без префикса порядка
		if fx.Entity == "" {
			base := strings.TrimSuffix(name, filepath.Ext(name))
			if prefix, rest, ok := strings.Cut(base, "_"); ok && isDigits(prefix) {
				base = rest
			}
			fx.Entity = base
		}
		fx.File = path
		out = append(out, fx)
	}
	return out, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Apply вставляет все фикстуры одной транзакцией: либо всё, либо ничего.
// Таблица, в которой уже есть строки, пропускается, так что повторный
// запуск с теми же сидами ничего не меняет.
func Apply(ctx context.Context, store *repo.Store, fixtures []Fixture, log *logrus.Entry) (err error) {
	if len(fixtures) == 0 {
		return nil
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	tx, err := store.BeginTransaction(ctx, "")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, fx := range fixtures {
		r, err := store.Repository(fx.Entity)
		if err != nil {
			return fmt.Errorf("%s: %w", fx.File, err)
		}
		n, err := r.Count(ctx, nil, repo.WithTx(tx))
		if err != nil {
			return fmt.Errorf("%s: %w", fx.File, err)
		}
		if n > 0 {
			log.WithFields(logrus.Fields{"entity": r.Descriptor().Name, "existing": n, "file": fx.File}).Info("seed skipped: table not empty")
			continue
		}
		rows := make([]repo.Row, len(fx.Rows))
		for i, row := range fx.Rows {
			rows[i] = repo.Row(row)
		}
		res, err := r.CreateAll(ctx, rows, repo.WithTx(tx), repo.NoReturning())
		if err != nil {
			return fmt.Errorf("%s: %w", fx.File, err)
		}
		log.WithFields(logrus.Fields{"entity": r.Descriptor().Name, "rows": res.Count, "file": fx.File}).Info("seeded")
	}
	return tx.Commit()
}
