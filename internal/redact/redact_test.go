package redact

import (
	"testing"

	"entrepo/internal/schema"

	"github.com/stretchr/testify/assert"
)

var product = &schema.Descriptor{
	Name: "Product",
	Columns: []schema.Column{
		{Name: "id", Type: schema.TypeString},
		{Name: "code", Type: schema.TypeString},
		{Name: "secret", Type: schema.TypeString, Hidden: true, Nullable: true},
		{Name: "pin", Type: schema.TypeInt, Hidden: true},
	},
}

func TestRowRemovesHidden(t *testing.T) {
	in := map[string]any{"id": "1", "code": "a", "secret": nil, "pin": 42, "channels": []any{}}
	out := Row(product, in)

	assert.Equal(t, map[string]any{"id": "1", "code": "a", "channels": []any{}}, out)
	// исходная строка не трогается
	assert.Contains(t, in, "secret")
	assert.Contains(t, in, "pin")
}

func TestRowNil(t *testing.T) {
	assert.Nil(t, Row(product, nil))
	assert.Nil(t, Rows(product, nil))
}

func TestRowsKeepOrder(t *testing.T) {
	out := Rows(product, []map[string]any{
		{"id": "1", "secret": "x"},
		{"id": "2", "pin": 7},
	})
	assert.Equal(t, []map[string]any{{"id": "1"}, {"id": "2"}}, out)
}

func TestNoHiddenColumns(t *testing.T) {
	plain := &schema.Descriptor{Name: "Channel", Columns: []schema.Column{{Name: "id"}}}
	row := map[string]any{"id": "c1", "name": "web"}
	assert.Equal(t, row, Row(plain, row))
}
