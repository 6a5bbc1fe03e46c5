package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"entrepo/internal/pg"
	"entrepo/internal/repo"
	"entrepo/internal/schema"
)

// GET /api/admin/ddl — DDL, который построил бы migrate, без применения
func AdminDDLHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ddl, err := pg.GenerateDDL(store.Registry())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ddl": ddl})
	}
}

// POST /api/admin/migrate — lint, затем идемпотентный DDL
func AdminMigrateHandler(store *repo.Store, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1) схема с блокирующими проблемами в базу не идёт
		if issues := schema.Lint(store.Registry()); len(issues) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "schema has blocking issues",
				"issues": issues,
				"hint":   "fix DSL and retry",
			})
			return
		}

		// 2) строим и применяем
		ddl, err := pg.GenerateDDL(store.Registry())
		if err != nil {
			writeError(c, err)
			return
		}
		if err := pg.ApplyDDL(c.Request.Context(), store.Connector(), ddl, log); err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ok":         true,
			"entities":   len(store.Registry().All()),
			"statements": len(ddl),
		})
	}
}
