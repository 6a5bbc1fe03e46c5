package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"entrepo/internal/repo"
	"entrepo/internal/schema"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Entity string `json:"entity"`
	Table  string `json:"table"`
}

func MetaListHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		all := store.Registry().All()
		out := make([]metaEntityListItem, 0, len(all))
		for _, d := range all {
			out = append(out, metaEntityListItem{Entity: d.Name, Table: d.Table})
		}
		c.JSON(http.StatusOK, out)
	}
}

type metaField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Required bool   `json:"required,omitempty"`
	Unique   bool   `json:"unique,omitempty"`
	Generate string `json:"generate,omitempty"`
	Default  string `json:"default,omitempty"`
}

type metaRelation struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Target     string   `json:"target"`
	Fields     []string `json:"fields"`
	References []string `json:"references"`
}

type metaEntity struct {
	Entity     string         `json:"entity"`
	Table      string         `json:"table"`
	PrimaryKey string         `json:"primaryKey"`
	Fields     []metaField    `json:"fields"`
	Relations  []metaRelation `json:"relations"`
}

// MetaEntityHandler описывает сущность. Скрытые колонки в meta не попадают:
// для клиента их нет так же, как в данных.
func MetaEntityHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, ok := store.Registry().Descriptor(c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}

		fields := make([]metaField, 0, len(d.Columns))
		for _, col := range d.Columns {
			if col.Hidden {
				continue
			}
			fields = append(fields, metaField{
				Name:     col.Name,
				Type:     string(col.Type),
				Nullable: col.Nullable,
				Required: col.Required,
				Unique:   col.Unique,
				Generate: col.Generate,
				Default:  col.Default,
			})
		}

		rels, err := store.Registry().ResolveRelations(d)
		if err != nil {
			writeError(c, err)
			return
		}
		relations := make([]metaRelation, 0, len(rels))
		for _, rel := range rels {
			relations = append(relations, metaRelation{
				Name:       rel.Name,
				Kind:       string(rel.Kind),
				Target:     rel.Target.Name,
				Fields:     rel.Fields,
				References: rel.References,
			})
		}

		c.JSON(http.StatusOK, metaEntity{
			Entity:     d.Name,
			Table:      d.Table,
			PrimaryKey: d.PrimaryKey,
			Fields:     fields,
			Relations:  relations,
		})
	}
}

// GET /api/meta/_lint — проблемы в описании сущностей
func SchemaLintHandler(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		issues := schema.Lint(store.Registry())
		if issues == nil {
			issues = []schema.Issue{}
		}
		c.JSON(http.StatusOK, gin.H{"issues": issues})
	}
}
