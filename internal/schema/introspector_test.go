package schema

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestDescribeReturnsColumnsInOrdinalOrder(t *testing.T) {
	db, mock := newSQLMock(t)
	introspector := NewIntrospector(db)

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("products").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "integer").
			AddRow("name", "text").
			AddRow("price", "numeric"))

	desc, err := introspector.Describe(context.Background(), "products")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if desc.Table != "products" {
		t.Fatalf("Table = %q", desc.Table)
	}
	if len(desc.Columns) != 3 {
		t.Fatalf("len(Columns) = %d", len(desc.Columns))
	}
	if desc.Columns[0].Name != "id" || desc.Columns[2].Name != "price" {
		t.Fatalf("Columns = %+v", desc.Columns)
	}
	assertSQLMock(t, mock)
}

func TestDescribeMissingTableReturnsNotFound(t *testing.T) {
	db, mock := newSQLMock(t)
	introspector := NewIntrospector(db)

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("ghosts").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}))

	_, err := introspector.Describe(context.Background(), "ghosts")
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("Describe() error = %v, want ErrTableNotFound", err)
	}
	assertSQLMock(t, mock)
}

func TestDescribePropagatesQueryFailure(t *testing.T) {
	db, mock := newSQLMock(t)
	introspector := NewIntrospector(db)

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("products").
		WillReturnError(errors.New("permission denied"))

	if _, err := introspector.Describe(context.Background(), "products"); err == nil {
		t.Fatal("Describe() should propagate metadata failures")
	}
	assertSQLMock(t, mock)
}

func TestDescribeRejectsEmptyTableName(t *testing.T) {
	db, _ := newSQLMock(t)
	introspector := NewIntrospector(db)

	if _, err := introspector.Describe(context.Background(), "  "); err == nil {
		t.Fatal("Describe() should reject empty table name")
	}
}

func TestDescriptionTextRendering(t *testing.T) {
	desc := Description{
		Table: "products",
		Columns: []Column{
			{Name: "id", Type: "integer"},
			{Name: "name", Type: "text"},
		},
	}
	text := desc.Text()
	if !strings.HasPrefix(text, "Table products columns:\n") {
		t.Fatalf("Text() = %q", text)
	}
	if !strings.Contains(text, "  id INTEGER\n") || !strings.Contains(text, "  name TEXT\n") {
		t.Fatalf("Text() = %q", text)
	}
}
