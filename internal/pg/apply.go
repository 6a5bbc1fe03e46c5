package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// ApplyDDL выполняет map[ключ]sql в порядке ключей.
// Ожидается idempotent DDL (create ... if not exists).
func ApplyDDL(ctx context.Context, db *sql.DB, ddl map[string]string, log *logrus.Entry) error {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sqlText := strings.TrimSpace(ddl[k])
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			// duplicate_object (42710) и duplicate_table (42P07): уже применено
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && (pgErr.Code == "42710" || pgErr.Code == "42P07") {
				log.WithFields(logrus.Fields{"key": k, "code": pgErr.Code}).
					Debugf("DDL skipped (already exists): %s", strings.TrimSpace(pgErr.Message))
				continue
			}
			return fmt.Errorf("DDL apply failed (%s): %w", k, err)
		}
		log.WithField("key", k).Debug("DDL applied")
	}
	return nil
}
