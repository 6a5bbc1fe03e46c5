package dsl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrepo/internal/errs"
	"entrepo/internal/schema"
)

const catalog = `
# каталог
entity Product:
  @table goods
  id: int primary
  code: string required unique
  nValue: int default=0  # счётчик
  data: json
  secret: string hidden
  tags: string[] options: notnull, default='{}'
  relations:
    channels: many Channel(id -> productId) {"order": "id ASC", "limit": 10}

entity Channel:
  id: string primary generate=ulid
  productId: int required
  label: string default='a b'
  relations:
    product: one Product(productId -> id)
`

func TestParse(t *testing.T) {
	ents, err := Parse(strings.NewReader(catalog), "catalog.dsl")
	require.NoError(t, err)
	require.Len(t, ents, 2)

	p := ents[0]
	assert.Equal(t, "Product", p.Name)
	assert.Equal(t, "goods", p.Table)
	assert.Equal(t, "catalog.dsl:3", p.Source)
	require.Len(t, p.Fields, 6)
	assert.Equal(t, Field{Name: "nValue", Type: "int", Options: map[string]string{"default": "0"}}, p.Fields[2])
	assert.Equal(t, Field{Name: "tags", Type: "string[]", Options: map[string]string{"notnull": "true", "default": "{}"}}, p.Fields[5])
	require.Len(t, p.Relations, 1)
	assert.Equal(t, RelationDef{
		Name: "channels", Kind: "many", Target: "Channel",
		Fields: []string{"id"}, References: []string{"productId"},
		Scope: `{"order": "id ASC", "limit": 10}`,
	}, p.Relations[0])

	c := ents[1]
	assert.Equal(t, map[string]string{"primary": "true", "generate": "ulid"}, c.Fields[0].Options)
	assert.Equal(t, "a b", c.Fields[2].Options["default"])
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"outside entity": "id: int\n",
		"bad field":      "entity A:\n  ???\n",
		"bad relation":   "entity A:\n  id: int\n  relations:\n    b: some B(id -> aId)\n",
		"relation arrow": "entity A:\n  id: int\n  relations:\n    b: many B(id, aId)\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(src), "x.dsl")
			assert.Error(t, err)
		})
	}
}

func TestRegistryFromEntities(t *testing.T) {
	ents, err := Parse(strings.NewReader(catalog), "catalog.dsl")
	require.NoError(t, err)
	reg, err := Registry(ents)
	require.NoError(t, err)

	d, ok := reg.Descriptor("goods")
	require.True(t, ok)
	assert.Equal(t, "Product", d.Name)
	assert.Equal(t, "id", d.PrimaryKey)
	assert.True(t, d.IsHidden("secret"))

	code, _ := d.Column("code")
	assert.True(t, code.Required)
	assert.True(t, code.Unique)
	assert.False(t, code.Nullable)
	data, _ := d.Column("data")
	assert.True(t, data.Nullable)
	tags, _ := d.Column("tags")
	assert.False(t, tags.Nullable)
	assert.Equal(t, schema.TypeStringArray, tags.Type)

	ch, ok := reg.Descriptor("channels")
	require.True(t, ok)
	id, _ := ch.Column("id")
	assert.Equal(t, schema.GenerateULID, id.Generate)

	rel, err := reg.Relation(d, "channels")
	require.NoError(t, err)
	assert.Same(t, ch, rel.Target)
	require.NotNil(t, rel.Scope)
	assert.Equal(t, []string{"id ASC"}, []string(rel.Scope.Order))

	back, err := reg.Relation(ch, "product")
	require.NoError(t, err)
	assert.Same(t, d, back.Target)
	assert.Empty(t, schema.Lint(reg))
}

func TestDescriptorRejectsTwoPrimaryKeys(t *testing.T) {
	ents, err := Parse(strings.NewReader("entity A:\n  a: int primary\n  b: int primary\n"), "a.dsl")
	require.NoError(t, err)
	_, err = Registry(ents)
	assert.Error(t, err)
}

func TestRegistryDuplicateTable(t *testing.T) {
	src := "entity A:\n  @table same\n  id: int\nentity B:\n  @table same\n  id: int\n"
	ents, err := Parse(strings.NewReader(src), "dup.dsl")
	require.NoError(t, err)
	_, err = Registry(ents)
	assert.True(t, errors.Is(err, errs.ErrDuplicateModel))
}

func TestLoadAllEntities(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.dsl"), []byte("entity B:\n  id: int\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.DSL"), []byte("entity A:\n  id: int\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("entity C:\n"), 0o644))

	ents, err := LoadAllEntities(dir)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "A", ents[0].Name)
	assert.Equal(t, "B", ents[1].Name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.dsl"), []byte("entity A:\n  id: int\n"), 0o644))
	_, err = LoadAllEntities(dir)
	assert.Error(t, err)
}
