package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrepo/internal/schema"
)

func catalog(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	reg.MustRegister(
		&schema.Descriptor{
			Name: "Product",
			Columns: []schema.Column{
				{Name: "id", Type: schema.TypeInt},
				{Name: "code", Type: schema.TypeString, Required: true, Unique: true},
				{Name: "nValue", Type: schema.TypeInt, Nullable: true, Default: "0"},
				{Name: "data", Type: schema.TypeJSON, Nullable: true},
				{Name: "secret", Type: schema.TypeString, Nullable: true, Hidden: true, Default: "it's"},
			},
		},
		&schema.Descriptor{
			Name: "Channel",
			Columns: []schema.Column{
				{Name: "id", Type: schema.TypeString, Generate: schema.GenerateULID},
				{Name: "productId", Type: schema.TypeInt},
				{Name: "tags", Type: schema.TypeStringArray, Nullable: true},
			},
			Relations: func() []schema.Relation {
				return []schema.Relation{
					{Name: "product", Kind: schema.One, TargetName: "Product", Fields: []string{"productId"}, References: []string{"id"}},
					{Name: "siblings", Kind: schema.Many, TargetName: "Channel", Fields: []string{"productId"}, References: []string{"productId"}},
				}
			},
		},
	)
	return reg
}

func TestGenerateDDL(t *testing.T) {
	ddl, err := GenerateDDL(catalog(t))
	require.NoError(t, err)
	require.Len(t, ddl, 2)

	assert.Equal(t, `create table if not exists "channels" (
  "id" text primary key,
  "productId" bigint not null,
  "tags" text[]
);
create table if not exists "products" (
  "id" bigint generated by default as identity primary key,
  "code" text not null,
  "nValue" bigint default 0,
  "data" jsonb,
  "secret" text default 'it''s'
);
create unique index if not exists "products_code_uq" on "products"("code");
`, ddl["000_tables"])
	assert.Equal(t,
		`alter table "channels" add constraint "channels_product_fk" foreign key ("productId") references "products"("id") on delete restrict;`,
		ddl["200_channels_product_fk"])
}

func TestGenerateDDLUnknownType(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustRegister(&schema.Descriptor{Name: "Odd", Columns: []schema.Column{{Name: "id", Type: "blob"}}})
	_, err := GenerateDDL(reg)
	assert.Error(t, err)
}

func TestApplyDDL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("create table a (id int);").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("alter table a add constraint x;").
		WillReturnError(&pgconn.PgError{Code: "42710", Message: `constraint "x" already exists`})
	mock.ExpectExec("alter table a add constraint y;").WillReturnResult(sqlmock.NewResult(0, 0))

	err = ApplyDDL(context.Background(), db, map[string]string{
		"200_y": "alter table a add constraint y;",
		"000":   "create table a (id int);",
		"100":   "  ",
		"200_x": "alter table a add constraint x;",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDDLFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	boom := &pgconn.PgError{Code: "42601", Message: "syntax error"}
	mock.ExpectExec("create tabel a;").WillReturnError(boom)

	err = ApplyDDL(context.Background(), db, map[string]string{"000": "create tabel a;"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestOpenBadURL(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db url")
}
