package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"entrepo/internal/filter"
	"entrepo/internal/repo"
)

// repository по :entity (имя таблицы или сущности); нет — 404.
func repository(c *gin.Context, store *repo.Store) (*repo.Repository, bool) {
	r, err := store.Repository(c.Param("entity"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return nil, false
	}
	return r, true
}

// readJSON декодирует тело с json.Number, чтобы не терять точность bigint.
func readJSON(c *gin.Context) (any, bool) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return nil, false
	}
	return body, true
}

func readObject(c *gin.Context) (repo.Row, bool) {
	body, ok := readJSON(c)
	if !ok {
		return nil, false
	}
	obj, ok := body.(map[string]any)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected JSON object"})
		return nil, false
	}
	return obj, true
}

func forced(c *gin.Context) []repo.Option {
	if b, err := strconv.ParseBool(c.Query("force")); err == nil && b {
		return []repo.Option{repo.Force()}
	}
	return nil
}

// POST /api/:entity — объект или массив объектов
func CreateHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := repository(c, store)
		if !ok {
			return
		}
		body, ok := readJSON(c)
		if !ok {
			return
		}

		switch v := body.(type) {
		case map[string]any:
			res, err := r.Create(c.Request.Context(), v)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusCreated, res.One())
		case []any:
			rows := make([]repo.Row, 0, len(v))
			for i, item := range v {
				obj, ok := item.(map[string]any)
				if !ok {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Expected array of objects, item " + strconv.Itoa(i) + " is not an object"})
					return
				}
				rows = append(rows, obj)
			}
			res, err := r.CreateAll(c.Request.Context(), rows)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusCreated, res.Data)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Expected JSON object or array"})
		}
	}
}

// GET /api/:entity?filter=<json>&_limit=&_offset=&_sort=-field&field__op=v
func ListHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := repository(c, store)
		if !ok {
			return
		}
		f, err := listFilter(c.Request.URL.Query())
		if err != nil {
			writeError(c, err)
			return
		}

		rows, err := r.Find(c.Request.Context(), f)
		if err != nil {
			writeError(c, err)
			return
		}
		// total — без limit/offset, по тому же where
		total, err := r.Count(c.Request.Context(), f.Where)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("X-Total-Count", strconv.FormatInt(total, 10))
		c.JSON(http.StatusOK, rows)
	}
}

// GET /api/:entity/count?where=<json>&field__op=v
func CountHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := repository(c, store)
		if !ok {
			return
		}
		where, err := queryWhere(c.Request.URL.Query())
		if err != nil {
			writeError(c, err)
			return
		}
		total, err := r.Count(c.Request.Context(), where)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": total})
	}
}

// GET /api/:entity/:id?filter=<json> — fields/include из filter
func GetOneHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := repository(c, store)
		if !ok {
			return
		}
		var f *filter.Filter
		if raw := c.Query("filter"); raw != "" {
			parsed, err := filter.Parse([]byte(raw))
			if err != nil {
				writeError(c, err)
				return
			}
			f = parsed
		}

		row, err := r.FindByID(c.Request.Context(), c.Param("id"), f)
		if err != nil {
			writeError(c, err)
			return
		}
		if row == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

// PATCH /api/:entity/:id
func UpdatePartialHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := repository(c, store)
		if !ok {
			return
		}
		obj, ok := readObject(c)
		if !ok {
			return
		}
		res, err := r.UpdateByID(c.Request.Context(), c.Param("id"), obj)
		if err != nil {
			writeError(c, err)
			return
		}
		if res.Count == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		c.JSON(http.StatusOK, res.One())
	}
}

// PATCH /api/:entity?where=<json>&force=true
func BulkPatchHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := repository(c, store)
		if !ok {
			return
		}
		where, err := queryWhere(c.Request.URL.Query())
		if err != nil {
			writeError(c, err)
			return
		}
		obj, ok := readObject(c)
		if !ok {
			return
		}
		res, err := r.UpdateAll(c.Request.Context(), where, obj, forced(c)...)
		if err != nil {
			writeError(c, err)
			return
		}
		if res.Data == nil {
			res.Data = []repo.Row{}
		}
		c.JSON(http.StatusOK, gin.H{"count": res.Count, "data": res.Data})
	}
}

// DELETE /api/:entity/:id
func DeleteHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := repository(c, store)
		if !ok {
			return
		}
		res, err := r.DeleteByID(c.Request.Context(), c.Param("id"), repo.NoReturning())
		if err != nil {
			writeError(c, err)
			return
		}
		if res.Count == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// DELETE /api/:entity?where=<json>&force=true
func BulkDeleteHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := repository(c, store)
		if !ok {
			return
		}
		where, err := queryWhere(c.Request.URL.Query())
		if err != nil {
			writeError(c, err)
			return
		}
		opts := append(forced(c), repo.NoReturning())
		res, err := r.DeleteAll(c.Request.Context(), where, opts...)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": res.Count})
	}
}
