package tenantsql

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/Masterminds/squirrel"
	"github.com/skuid/tenantsql/dialect"
	"github.com/skuid/tenantsql/errs"
	"github.com/skuid/tenantsql/testdata"
	"github.com/stretchr/testify/assert"
)

func TestCompile(t *testing.T) {
	b := squirrel.StatementBuilder

	testCases := []struct {
		desc     string
		q        squirrel.Sqlizer
		wantKind StatementKind
		wantSQL  string
	}{
		{"select", b.Select("*").From("users"), Select, "SELECT * FROM users"},
		{"insert", b.Insert("users").Columns("name").Values("a"), Insert, "INSERT INTO users (name) VALUES (?)"},
		{"update", b.Update("users").Set("name", "a"), Update, "UPDATE users SET name = ?"},
		{"delete", b.Delete("users"), Delete, "DELETE FROM users"},
		{"raw expressions fall back to select", squirrel.Expr("SELECT 1"), Select, "SELECT 1"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert := assert.New(t)

			plan, err := Compile(tc.q)
			assert.NoError(err)
			assert.Equal(tc.wantKind, plan.Kind)
			assert.Equal(tc.wantSQL, plan.SQL)
		})
	}

	_, err := Compile(nil)
	assert.True(t, errs.Is(err, errs.Internal))
}

func TestRun(t *testing.T) {
	testCases := []struct {
		desc       string
		build      func(b squirrel.StatementBuilderType) squirrel.Sqlizer
		opts       []QueryOption
		expect     func(mock sqlmock.Sqlmock)
		wantResult *Result
	}{
		{
			"select returns rows",
			func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
				return b.Select("id", "name", "avatar").From("users").Where(squirrel.Eq{"org_id": 1})
			},
			nil,
			func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(testdata.FmtSQLRegex(`
					SELECT id, name, avatar FROM users WHERE org_id = ?
				`)).
					WithArgs(1).
					WillReturnRows(
						sqlmock.NewRows([]string{"id", "name", "avatar"}).
							AddRow(int64(1), []byte("a"), []byte{0xff, 0xfe}).
							AddRow(int64(2), []byte("b"), nil),
					)
			},
			&Result{
				Kind: Select,
				Rows: []map[string]interface{}{
					{"id": int64(1), "name": "a", "avatar": []byte{0xff, 0xfe}},
					{"id": int64(2), "name": "b", "avatar": nil},
				},
			},
		},
		{
			"select without rows",
			func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
				return b.Select("id").From("users")
			},
			nil,
			func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(testdata.FmtSQLRegex(`SELECT id FROM users`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			&Result{Kind: Select, Rows: []map[string]interface{}{}},
		},
		{
			"insert reports the new id",
			func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
				return b.Insert("users").Columns("name").Values("a")
			},
			nil,
			func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(testdata.FmtSQLRegex(`INSERT INTO users (name) VALUES (?)`)).
					WithArgs("a").
					WillReturnResult(sqlmock.NewResult(7, 1))
			},
			&Result{Kind: Insert, InsertID: int64Ptr(7), RowsAffected: 1},
		},
		{
			"update reports affected rows only",
			func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
				return b.Update("users").Set("active", false).Where(squirrel.Eq{"org_id": 1})
			},
			nil,
			func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(testdata.FmtSQLRegex(`UPDATE users SET active = ? WHERE org_id = ?`)).
					WithArgs(false, 1).
					WillReturnResult(sqlmock.NewResult(0, 3))
			},
			&Result{Kind: Update, RowsAffected: 3},
		},
		{
			"delete",
			func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
				return b.Delete("users").Where(squirrel.Eq{"id": 9})
			},
			nil,
			func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(testdata.FmtSQLRegex(`DELETE FROM users WHERE id = ?`)).
					WithArgs(9).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			&Result{Kind: Delete, RowsAffected: 1},
		},
		{
			"caller options win",
			func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
				return squirrel.Expr("CALL archive_users(?)", 1)
			},
			[]QueryOption{WithType(Update), WithReplacements(2)},
			func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(testdata.FmtSQLRegex(`CALL archive_users(?)`)).
					WithArgs(2).
					WillReturnResult(sqlmock.NewResult(0, 4))
			},
			&Result{Kind: Update, RowsAffected: 4},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert := assert.New(t)

			tn, mock, err := NewMockTenant("acme", dialect.MySQL)
			assert.NoError(err)
			tc.expect(mock)

			result, err := Run(context.Background(), tn, tc.build, tc.opts...)
			assert.NoError(err)
			assert.Equal(tc.wantResult, result)
			assert.NoError(mock.ExpectationsWereMet())
		})
	}
}

func TestRunPostgresPlaceholders(t *testing.T) {
	assert := assert.New(t)

	tn, mock, err := NewMockTenant("acme", dialect.Postgres)
	assert.NoError(err)

	mock.ExpectQuery(testdata.FmtSQLRegex(`SELECT * FROM users WHERE org_id = $1 AND "name" = 'a'`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	result, err := Run(context.Background(), tn, func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
		q, _ := Where(tn, b.Select("*").From("users").Where(squirrel.Eq{"org_id": 1}), map[interface{}]interface{}{"name": "a"})
		return q
	})
	assert.NoError(err)
	assert.Len(result.Rows, 1)
	assert.NoError(mock.ExpectationsWereMet())
}

func TestRunInTransaction(t *testing.T) {
	assert := assert.New(t)

	tn, mock, err := NewMockTenant("acme", dialect.MySQL)
	assert.NoError(err)

	mock.ExpectBegin()
	mock.ExpectExec(testdata.FmtSQLRegex(`DELETE FROM users WHERE id = ?`)).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := tn.DB.Begin()
	assert.NoError(err)

	result, err := Run(context.Background(), tn, func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
		return b.Delete("users").Where(squirrel.Eq{"id": 1})
	}, WithTx(tx))
	assert.NoError(err)
	assert.Equal(int64(1), result.RowsAffected)

	assert.NoError(tx.Commit())
	assert.NoError(mock.ExpectationsWereMet())
}

func TestRunErrors(t *testing.T) {
	assert := assert.New(t)

	tn, mock, err := NewMockTenant("acme", dialect.MySQL)
	assert.NoError(err)

	driverErr := errors.New("Error 1146: Table 'acme.users' doesn't exist")
	mock.ExpectQuery(testdata.FmtSQLRegex(`SELECT * FROM users`)).WillReturnError(driverErr)

	_, err = Run(context.Background(), tn, func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
		return b.Select("*").From("users")
	})
	assert.Error(err)
	assert.True(errs.Is(err, errs.Connection))
	assert.ErrorIs(err, driverErr)

	var queryErr *QueryError
	if assert.ErrorAs(err, &queryErr) {
		assert.Equal("SELECT * FROM users", queryErr.Query)
	}

	_, err = Run(context.Background(), tn, func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
		return b.Insert("users")
	})
	assert.True(errs.Is(err, errs.Internal))

	_, err = Run(context.Background(), nil, func(b squirrel.StatementBuilderType) squirrel.Sqlizer {
		return b.Select("1")
	})
	assert.True(errs.Is(err, errs.UninitializedBridge))

	assert.NoError(mock.ExpectationsWereMet())
}

func int64Ptr(i int64) *int64 {
	return &i
}
