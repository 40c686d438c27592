package dialect

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMySQLMock(t *testing.T, batch int) (*mysqlAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &mysqlAdapter{db: db, policy: MySQLFallbackType, batch: batch}, mock
}

func TestMySQLListColumns(t *testing.T) {
	a, mock := newMySQLMock(t, 500)
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_type", "nullable", "ordinal_position"}).
			AddRow("id", "int(11)", false, 1).
			AddRow("total", "decimal(10,2)", true, 2))

	cols, err := a.ListColumns(context.Background(), "shop", "orders")
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 2 || cols[1].NativeType != "decimal(10,2)" {
		t.Errorf("unexpected columns: %+v", cols)
	}
}

func TestMySQLListColumnsTableNotFound(t *testing.T) {
	a, mock := newMySQLMock(t, 500)
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_type", "nullable", "ordinal_position"}))

	_, err := a.ListColumns(context.Background(), "", "missing")
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestMySQLEnsureTableCreatesFallbackTypes(t *testing.T) {
	a, mock := newMySQLMock(t, 500)
	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("shop", "users_copy").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE `shop`.`users_copy` (`id` VARCHAR(255), `name` VARCHAR(255))")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := a.EnsureTable(context.Background(), "shop", "users_copy", testColumns)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("expected created=true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMySQLEnsureTableUnqualifiedWhenSchemaEmpty(t *testing.T) {
	a, mock := newMySQLMock(t, 500)
	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("", "users_copy").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE `users_copy` (`id` VARCHAR(255), `name` VARCHAR(255))")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := a.EnsureTable(context.Background(), "", "users_copy", testColumns); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMySQLTruncate(t *testing.T) {
	a, mock := newMySQLMock(t, 500)
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE `shop`.`users_copy`")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := a.Truncate(context.Background(), "shop", "users_copy"); err != nil {
		t.Fatal(err)
	}
}

func TestMySQLWriteRowsBatches(t *testing.T) {
	a, mock := newMySQLMock(t, 2)
	reader := &sliceReader{rows: [][]interface{}{
		{int64(1), "a"},
		{int64(2), "b"},
		{int64(3), "c"},
	}}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `users_copy` (`id`, `name`) VALUES (?, ?), (?, ?)")).
		WithArgs(int64(1), "a", int64(2), "b").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `users_copy` (`id`, `name`) VALUES (?, ?)")).
		WithArgs(int64(3), "c").
		WillReturnResult(sqlmock.NewResult(0, 1))

	written, err := a.WriteRows(context.Background(), "", "users_copy", testColumns, reader)
	if err != nil {
		t.Fatal(err)
	}
	if written != 3 {
		t.Errorf("written = %d, want 3", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMySQLWriteRowsReaderError(t *testing.T) {
	a, _ := newMySQLMock(t, 10)
	reader := &sliceReader{
		rows:   [][]interface{}{{int64(1), "a"}},
		outErr: errors.New("connection reset"),
	}

	written, err := a.WriteRows(context.Background(), "", "users_copy", testColumns, reader)
	if err == nil {
		t.Fatal("expected reader error to surface")
	}
	if written != 0 {
		t.Errorf("written = %d, want 0 (batch never flushed)", written)
	}
}
