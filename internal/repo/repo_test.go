package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrepo/internal/errs"
	"entrepo/internal/filter"
	"entrepo/internal/metrics"
	"entrepo/internal/schema"
)

var productCols = []string{"id", "name", "price"}

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	products := &schema.Descriptor{
		Name: "Product",
		Columns: []schema.Column{
			{Name: "id", Type: schema.TypeInt},
			{Name: "name", Type: schema.TypeString, Required: true},
			{Name: "price", Type: schema.TypeFloat, Nullable: true},
			{Name: "secret", Type: schema.TypeString, Nullable: true, Hidden: true},
		},
	}
	channels := &schema.Descriptor{
		Name: "Channel",
		Columns: []schema.Column{
			{Name: "id", Type: schema.TypeInt},
			{Name: "productId", Type: schema.TypeInt, Nullable: true},
			{Name: "label", Type: schema.TypeString},
		},
	}
	products.Relations = func() []schema.Relation {
		return []schema.Relation{{
			Name: "channels", Kind: schema.Many, Target: channels,
			Fields: []string{"id"}, References: []string{"productId"},
			Scope: &filter.Filter{Order: filter.Order{"id ASC"}},
		}}
	}
	channels.Relations = func() []schema.Relation {
		return []schema.Relation{{
			Name: "product", Kind: schema.One, TargetName: "Product",
			Fields: []string{"productId"}, References: []string{"id"},
		}}
	}
	reg := schema.NewRegistry()
	reg.MustRegister(products, channels)
	return reg
}

func newStore(t *testing.T, opts ...StoreOption) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, _ := logtest.NewNullLogger()
	opts = append([]StoreOption{WithLogger(logrus.NewEntry(logger))}, opts...)
	return NewStore(db, newRegistry(t), opts...), mock
}

func fieldErrors(t *testing.T, err error) []errs.FieldError {
	t.Helper()
	var e *errs.Error
	require.True(t, errors.As(err, &e), "expected *errs.Error, got %T", err)
	return e.Fields
}

func TestRepositoryLookup(t *testing.T) {
	s, _ := newStore(t)

	byTable, err := s.Repository("products")
	require.NoError(t, err)
	byName, err := s.Repository("Product")
	require.NoError(t, err)
	assert.Same(t, byTable, byName)
	assert.Equal(t, "products", byName.Descriptor().Table)

	_, err = s.Repository("ghost")
	assert.True(t, errors.Is(err, errs.ErrUnresolvedReference))
	assert.Panics(t, func() { s.MustRepository("ghost") })
}

func TestFindRedactsHiddenColumns(t *testing.T) {
	s, mock := newStore(t)
	// даже если хранилище вернуло скрытую колонку, наружу она не уходит
	mock.ExpectQuery(`SELECT "id", "name", "price" FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "secret"}).
			AddRow(int64(1), "a", 1.5, "s1").
			AddRow(int64(2), "b", nil, nil))

	rows, err := s.MustRepository("Product").Find(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"id": int64(1), "name": "a", "price": 1.5},
		{"id": int64(2), "name": "b", "price": nil},
	}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindFieldSelection(t *testing.T) {
	cases := []struct {
		name   string
		fields filter.Fields
		sql    string
		cols   []string
		row    []driver.Value
		want   Row
	}{
		{
			name:   "list drops hidden",
			fields: filter.Fields{List: []string{"name", "secret"}},
			sql:    `SELECT "name" FROM "products"`,
			cols:   []string{"name"},
			row:    []driver.Value{"a"},
			want:   Row{"name": "a"},
		},
		{
			name:   "map with false only",
			fields: filter.Fields{Map: map[string]bool{"price": false}},
			sql:    `SELECT "id", "name" FROM "products"`,
			cols:   []string{"id", "name"},
			row:    []driver.Value{int64(1), "a"},
			want:   Row{"id": int64(1), "name": "a"},
		},
		{
			name:   "map with true keeps only true",
			fields: filter.Fields{Map: map[string]bool{"name": true, "price": false}},
			sql:    `SELECT "name" FROM "products"`,
			cols:   []string{"name"},
			row:    []driver.Value{"a"},
			want:   Row{"name": "a"},
		},
		{
			name:   "only hidden selected",
			fields: filter.Fields{List: []string{"secret"}},
			sql:    `SELECT "id" FROM "products"`,
			cols:   []string{"id"},
			row:    []driver.Value{int64(1)},
			want:   Row{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newStore(t)
			mock.ExpectQuery(tc.sql).WillReturnRows(sqlmock.NewRows(tc.cols).AddRow(tc.row...))

			rows, err := s.MustRepository("Product").Find(context.Background(), &filter.Filter{Fields: tc.fields})
			require.NoError(t, err)
			assert.Equal(t, []Row{tc.want}, rows)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFindUnknownField(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.MustRepository("Product").Find(context.Background(),
		&filter.Filter{Fields: filter.Fields{List: []string{"ghost"}}})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestFindWhereOrderPaging(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(`SELECT "id", "name", "price" FROM "products" WHERE "name" = $1 ORDER BY "price" DESC NULLS LAST LIMIT $2 OFFSET $3`).
		WithArgs("a", int64(2), int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(int64(3), "a", 9.0))

	rows, err := s.MustRepository("Product").Find(context.Background(), &filter.Filter{
		Where: filter.Where{"name": "a"},
		Order: filter.Order{"price DESC NULLS LAST"},
		Limit: filter.Int(2),
		Skip:  filter.Int(1),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0]["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindIncludeManyPerParentLimit(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(`SELECT "id", "name" FROM "products" ORDER BY "id" ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "a").
			AddRow(int64(2), "b").
			AddRow(int64(3), "c"))
	// один запрос на всю пачку, без LIMIT: лимит применяется к каждому родителю
	mock.ExpectQuery(`SELECT "productId", "label" FROM "channels" WHERE "productId" IN ($1, $2, $3) ORDER BY "id" DESC`).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"productId", "label"}).
			AddRow(int64(1), "x2").
			AddRow(int64(1), "x1").
			AddRow(int64(2), "y"))

	rows, err := s.MustRepository("Product").Find(context.Background(), &filter.Filter{
		Fields: filter.Fields{List: []string{"name"}},
		Order:  filter.Order{"id"},
		Include: []filter.Inclusion{{
			Relation: "channels",
			Scope: &filter.Filter{
				Order:  filter.Order{"id DESC"},
				Limit:  filter.Int(1),
				Fields: filter.Fields{List: []string{"label"}},
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"name": "a", "channels": []Row{{"label": "x2"}}},
		{"name": "b", "channels": []Row{{"label": "y"}}},
		{"name": "c", "channels": []Row{}},
	}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindIncludeRelationDefaultScope(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(`SELECT "id", "name", "price" FROM "products"`).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(int64(1), "a", nil))
	mock.ExpectQuery(`SELECT "id", "productId", "label" FROM "channels" WHERE ("label" = $1) AND ("productId" IN ($2)) ORDER BY "id" ASC`).
		WithArgs("x", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "productId", "label"}).AddRow(int64(10), int64(1), "x"))

	rows, err := s.MustRepository("Product").Find(context.Background(), &filter.Filter{
		Include: []filter.Inclusion{{Relation: "channels", Scope: &filter.Filter{Where: filter.Where{"label": "x"}}}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []Row{{"id": int64(10), "productId": int64(1), "label": "x"}}, rows[0]["channels"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindIncludeOneRedactsNested(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(`SELECT "id", "productId", "label" FROM "channels"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "productId", "label"}).
			AddRow(int64(10), int64(1), "x").
			AddRow(int64(11), int64(1), "y").
			AddRow(int64(12), nil, "z"))
	mock.ExpectQuery(`SELECT "id", "name", "price" FROM "products" WHERE "id" IN ($1)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "secret"}).AddRow(int64(1), "a", nil, "s1"))

	rows, err := s.MustRepository("channels").Find(context.Background(),
		&filter.Filter{Include: []filter.Inclusion{{Relation: "product"}}})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	product := Row{"id": int64(1), "name": "a", "price": nil}
	assert.Equal(t, product, rows[0]["product"])
	assert.Equal(t, product, rows[1]["product"])
	assert.Nil(t, rows[2]["product"])
	assert.Contains(t, rows[2], "product")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindIncludeRejects(t *testing.T) {
	s, mock := newStore(t, WithMaxIncludeDepth(1))
	repo := s.MustRepository("Product")

	_, err := repo.Find(context.Background(), &filter.Filter{Include: []filter.Inclusion{{
		Relation: "channels",
		Scope:    &filter.Filter{Include: []filter.Inclusion{{Relation: "product"}}},
	}}})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = repo.Find(context.Background(), &filter.Filter{Include: []filter.Inclusion{{Relation: "ghost"}}})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID(t *testing.T) {
	s, mock := newStore(t)
	repo := s.MustRepository("Product")

	mock.ExpectQuery(`SELECT "id", "name", "price" FROM "products" WHERE "id" = $1 LIMIT $2`).
		WithArgs(int64(7), int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols))
	row, err := repo.FindByID(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.Nil(t, row)

	mock.ExpectQuery(`SELECT "id", "name", "price" FROM "products" WHERE "id" = $1 LIMIT $2`).
		WithArgs(int64(1), int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(int64(1), "a", nil))
	row, err = repo.FindByID(context.Background(), "1", nil)
	require.NoError(t, err)
	assert.Equal(t, Row{"id": int64(1), "name": "a", "price": nil}, row)

	_, err = repo.FindByID(context.Background(), "abc", nil)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOne(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(`SELECT "id", "name", "price" FROM "products" ORDER BY "id" DESC LIMIT $1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(int64(9), "z", nil))

	row, err := s.MustRepository("Product").FindOne(context.Background(), &filter.Filter{Order: filter.Order{"id DESC"}})
	require.NoError(t, err)
	assert.Equal(t, int64(9), row["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAndExistsByHiddenColumn(t *testing.T) {
	s, mock := newStore(t)
	repo := s.MustRepository("Product")

	mock.ExpectQuery(`SELECT COUNT(*) FROM "products" WHERE "secret" = $1`).
		WithArgs("s3").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	n, err := repo.Count(context.Background(), filter.Where{"secret": "s3"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectQuery(`SELECT EXISTS (SELECT 1 FROM "products" WHERE "secret" IS NULL)`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.ExistsWith(context.Background(), filter.Where{"secret": nil})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.Count(context.Background(), filter.Where{"price": filter.Where{"near": 1}})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectQuery(`INSERT INTO "products" ("name", "secret") VALUES ($1, $2) RETURNING "id", "name", "price"`).
		WithArgs("a", "s").
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(int64(1), "a", nil))

	res, err := s.MustRepository("Product").Create(context.Background(), Row{"name": "a", "secret": "s"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, Row{"id": int64(1), "name": "a", "price": nil}, res.One())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAllMixedColumns(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectExec(`INSERT INTO "products" ("name", "price") VALUES ($1, DEFAULT), ($2, $3)`).
		WithArgs("a", "b", 2.5).
		WillReturnResult(sqlmock.NewResult(0, 2))

	res, err := s.MustRepository("Product").CreateAll(context.Background(),
		[]Row{{"name": "a"}, {"name": "b", "price": 2.5}}, NoReturning())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)
	assert.Nil(t, res.Data)

	res, err = s.MustRepository("Product").CreateAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []Row{}, res.Data)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateValidation(t *testing.T) {
	s, mock := newStore(t)
	repo := s.MustRepository("Product")

	_, err := repo.Create(context.Background(), Row{"name": 5, "bogus": 1})
	require.True(t, errors.Is(err, errs.ErrValidation))
	assert.Equal(t, []errs.FieldError{
		{Code: errs.CodeUnknownField, Field: "bogus", Message: "unknown field"},
		{Code: errs.CodeTypeMismatch, Field: "name", Message: "must be string"},
	}, fieldErrors(t, err))

	_, err = repo.Create(context.Background(), Row{})
	require.True(t, errors.Is(err, errs.ErrValidation))
	assert.Equal(t, []errs.FieldError{{Code: errs.CodeRequired, Field: "name", Message: "is required"}}, fieldErrors(t, err))

	_, err = repo.Create(context.Background(), Row{"name": nil})
	require.True(t, errors.Is(err, errs.ErrValidation))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsIntOutOfRange(t *testing.T) {
	s, mock := newStore(t)
	repo := s.MustRepository("Product")

	// YAML и Go-вызовы отдают числа как float64
	for _, v := range []float64{1e20, -1e20, 9.223372036854775808e18} {
		_, err := repo.Create(context.Background(), Row{"id": v, "name": "a"})
		require.True(t, errors.Is(err, errs.ErrValidation), "%v", v)
		assert.Equal(t, []errs.FieldError{
			{Code: errs.CodeTypeMismatch, Field: "id", Message: "out of int64 range"},
		}, fieldErrors(t, err))
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateConstraintViolation(t *testing.T) {
	s, mock := newStore(t)
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "products_name_key", Detail: "Key (name)=(a) already exists."}
	mock.ExpectQuery(`INSERT INTO "products" ("name") VALUES ($1) RETURNING "id", "name", "price"`).
		WithArgs("a").
		WillReturnError(pgErr)

	_, err := s.MustRepository("Product").Create(context.Background(), Row{"name": "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation))
	var got *pgconn.PgError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, "products_name_key", got.ConstraintName)
	assert.Contains(t, err.Error(), "Product.create")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateByID(t *testing.T) {
	s, mock := newStore(t)
	repo := s.MustRepository("Product")

	mock.ExpectQuery(`UPDATE "products" SET "price" = $1 WHERE "id" = $2 RETURNING "id", "name", "price"`).
		WithArgs(3.5, int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(int64(1), "a", 3.5))
	res, err := repo.UpdateByID(context.Background(), 1, Row{"price": 3.5})
	require.NoError(t, err)
	assert.Equal(t, Row{"id": int64(1), "name": "a", "price": 3.5}, res.One())

	_, err = repo.UpdateByID(context.Background(), 1, Row{})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutationGuard(t *testing.T) {
	s, mock := newStore(t)
	repo := s.MustRepository("Product")
	ctx := context.Background()

	for _, where := range []filter.Where{nil, {}, {"and": []any{}}} {
		_, err := repo.UpdateAll(ctx, where, Row{"price": 1.0})
		assert.True(t, errors.Is(err, errs.ErrGuardedMutation), "update %v", where)
		_, err = repo.DeleteAll(ctx, where)
		assert.True(t, errors.Is(err, errs.ErrGuardedMutation), "delete %v", where)
	}

	mock.ExpectExec(`UPDATE "products" SET "secret" = $1`).
		WithArgs(nil).
		WillReturnResult(sqlmock.NewResult(0, 3))
	res, err := repo.UpdateAll(ctx, nil, Row{"secret": nil}, Force(), NoReturning())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	s, mock := newStore(t)
	repo := s.MustRepository("Product")
	ctx := context.Background()

	mock.ExpectQuery(`DELETE FROM "products" WHERE "price" < $1 RETURNING "id", "name", "price"`).
		WithArgs(1.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "secret"}).AddRow(int64(2), "b", 0.5, "s2"))
	res, err := repo.DeleteAll(ctx, filter.Where{"price": map[string]any{"lt": 1}})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"id": int64(2), "name": "b", "price": 0.5}}, res.Data)

	mock.ExpectExec(`DELETE FROM "products" WHERE "id" = $1`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	res, err = repo.DeleteByID(ctx, 2, NoReturning())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionScopedOperations(t *testing.T) {
	s, mock := newStore(t)
	repo := s.MustRepository("Product")
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "products" ("name") VALUES ($1) RETURNING "id", "name", "price"`).
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(int64(1), "a", nil))
	mock.ExpectCommit()

	tx, err := s.BeginTransaction(ctx, "")
	require.NoError(t, err)
	_, err = repo.Create(ctx, Row{"name": "a"}, WithTx(tx))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = repo.Find(ctx, nil, WithTx(tx))
	require.True(t, errors.Is(err, errs.ErrInactiveTransaction))
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "Product", e.Entity)
	assert.Equal(t, "find", e.Op)

	_, err = repo.DeleteByID(ctx, 1, WithTx(tx))
	assert.True(t, errors.Is(err, errs.ErrInactiveTransaction))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionOutlivesBeginContext(t *testing.T) {
	s, mock := newStore(t)
	repo := s.MustRepository("Product")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id", "name", "price" FROM "products"`).
		WillReturnRows(sqlmock.NewRows(productCols))
	mock.ExpectExec(`DELETE FROM "products" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnError(sql.ErrTxDone)
	mock.ExpectRollback()

	ctx, cancel := context.WithCancel(context.Background())
	tx, err := s.BeginTransaction(ctx, "")
	require.NoError(t, err)
	cancel()

	_, err = repo.Find(context.Background(), nil, WithTx(tx))
	require.NoError(t, err)

	// сессия, закрытая драйвером, даёт ту же ошибку, что и терминальная транзакция
	_, err = repo.DeleteByID(context.Background(), 1, WithTx(tx), NoReturning())
	assert.True(t, errors.Is(err, errs.ErrInactiveTransaction))
	assert.True(t, errors.Is(err, sql.ErrTxDone))

	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationLogsAndMetrics(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	c := metrics.NewCollector("entrepo")
	s, _ := newStore(t, WithLogger(logrus.NewEntry(logger)), WithMetrics(c))

	_, err := s.MustRepository("Product").DeleteAll(context.Background(), nil)
	require.Error(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "Product", entry.Data["entity"])
	assert.Equal(t, "deleteAll", entry.Data["op"])

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `entrepo_queries_total{entity="Product",op="deleteAll",status="guarded"} 1`)
}

func TestDecodeColumns(t *testing.T) {
	var types *pgtype.Map
	decodeValue := func(c schema.Column, v any) (any, error) { return decode(c, v, &types) }

	v, err := decodeValue(schema.Column{Type: schema.TypeJSON}, []byte(`{"a":[1,"x"]}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{1.0, "x"}}, v)

	v, err = decodeValue(schema.Column{Type: schema.TypeIntArray}, "{1,2,3}")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, v)

	v, err = decodeValue(schema.Column{Type: schema.TypeStringArray}, []byte(`{a,"b c"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b c"}, v)

	v, err = decodeValue(schema.Column{Type: schema.TypeString}, []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", v)

	_, err = decodeValue(schema.Column{Type: schema.TypeJSON}, "{broken")
	assert.Error(t, err)
}
