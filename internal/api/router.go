package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"entrepo/internal/metrics"
	"entrepo/internal/repo"
)

// Observe пишет метрику и строку лога на каждый запрос.
// route — шаблон маршрута (/api/:entity/:id), а не сырой путь.
func Observe(m *metrics.Collector, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		took := time.Since(start)
		status := c.Writer.Status()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), strconv.Itoa(status), took)

		entry := log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
			"took":   took,
		})
		if err := c.Errors.Last(); err != nil {
			entry = entry.WithError(err.Err)
		}
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request")
		}
	}
}

// NewRouter собирает gin-движок поверх Store.
func NewRouter(store *repo.Store, m *metrics.Collector, log *logrus.Entry) *gin.Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := gin.New()
	r.Use(gin.Recovery(), Observe(m, log))

	r.GET("/metrics", gin.WrapH(m.Handler()))

	apiGroup := r.Group("/api")
	{
		// статические "служебные" маршруты — СНАЧАЛА
		apiGroup.GET("/meta", MetaListHandler(store))
		apiGroup.GET("/meta/_lint", SchemaLintHandler(store))
		apiGroup.GET("/meta/:entity", MetaEntityHandler(store))
		apiGroup.GET("/admin/ddl", AdminDDLHandler(store))
		apiGroup.POST("/admin/migrate", AdminMigrateHandler(store, log))
		apiGroup.GET("/:entity/count", CountHandler(store))

		// обычные CRUD
		apiGroup.POST("/:entity", CreateHandler(store))
		apiGroup.GET("/:entity", ListHandler(store))
		apiGroup.PATCH("/:entity", BulkPatchHandler(store))
		apiGroup.DELETE("/:entity", BulkDeleteHandler(store))
		apiGroup.GET("/:entity/:id", GetOneHandler(store))
		apiGroup.PATCH("/:entity/:id", UpdatePartialHandler(store))
		apiGroup.DELETE("/:entity/:id", DeleteHandler(store))
	}
	return r
}

// RunServer блокируется до остановки сервера.
func RunServer(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
